// Command mirageinfo opens an optical-disc image and prints its layout.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/cdemu/go-mirage"
	_ "github.com/cdemu/go-mirage/b6t"
	_ "github.com/cdemu/go-mirage/ccd"
	_ "github.com/cdemu/go-mirage/cue"
	_ "github.com/cdemu/go-mirage/daa"
	_ "github.com/cdemu/go-mirage/mds"
	_ "github.com/cdemu/go-mirage/mdx"
)

var (
	inputFile    = flag.String("i", "", "input image path (required)")
	password     = flag.String("password", "", "password for encrypted images")
	dumpSector   = flag.Int("dump-sector", -1, "dump the main-channel data of this absolute sector and exit")
	listFormats  = flag.Bool("list-formats", false, "list supported extensions and exit")
	version      = flag.Bool("version", false, "print version and exit")
)

const appVersion = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -i <image> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Opens an optical-disc image and prints its session/track layout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i disc.ccd\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i disc.cue -dump-sector 16\n", os.Args[0])
	}
	flag.Parse()

	if *version {
		fmt.Printf("mirageinfo version %s\n", appVersion)
		os.Exit(0)
	}

	if *listFormats {
		exts := mirage.SupportedExtensions()
		fmt.Println("Supported extensions:")
		for _, e := range exts {
			fmt.Printf("  %s\n", e)
		}
		os.Exit(0)
	}

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: input image required (-i)\n")
		flag.Usage()
		os.Exit(1)
	}

	opts := mirage.Options{Password: *password}
	disc, err := mirage.Open(*inputFile, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *inputFile, err)
		os.Exit(1)
	}

	if *dumpSector >= 0 {
		if err := dumpSectorData(disc, *dumpSector); err != nil {
			fmt.Fprintf(os.Stderr, "Error dumping sector %d: %v\n", *dumpSector, err)
			os.Exit(1)
		}
		return
	}

	printDisc(disc)
}

func printDisc(disc *mirage.Disc) {
	fmt.Printf("File: %s\n", disc.Filename())
	fmt.Printf("Medium: %s\n", mediumName(disc.Medium))
	if disc.MCN != "" {
		fmt.Printf("MCN: %s\n", disc.MCN)
	}
	fmt.Printf("Sessions: %d, Tracks: %d\n\n", len(disc.Sessions), disc.TrackCount())

	for _, session := range disc.Sessions {
		fmt.Printf("Session %d (lead-out %d sectors):\n", session.Number, session.LeadoutLen)
		for _, track := range session.Tracks {
			kind := "data"
			if !track.IsDataTrack() {
				kind = "audio"
			}
			fmt.Printf("  Track %2d: %-5s start=%-8d length=%-8d fragments=%d",
				track.Number, kind, track.StartSector(), track.Length(), len(track.Fragments))
			if track.ISRC != "" {
				fmt.Printf(" isrc=%s", track.ISRC)
			}
			fmt.Println()
			for _, idx := range track.Indices {
				fmt.Printf("    INDEX %02d: %d\n", idx.Number, idx.Start)
			}
		}
	}
}

func dumpSectorData(disc *mirage.Disc, addr int) error {
	var track *mirage.Track
	var relAddr int
	for si := range disc.Sessions {
		for ti := range disc.Sessions[si].Tracks {
			t := &disc.Sessions[si].Tracks[ti]
			start := t.StartSector()
			if addr >= start && addr < start+t.Length() {
				track = t
				relAddr = addr - start
			}
		}
	}
	if track == nil {
		return fmt.Errorf("sector %d is outside every track", addr)
	}

	frag, fragAddr, err := track.FragmentForSector(relAddr)
	if err != nil {
		return err
	}
	data, err := frag.ReadMainData(fragAddr)
	if err != nil {
		return err
	}
	fmt.Printf("Sector %d (track %d, fragment-relative %d), %d bytes:\n", addr, track.Number, fragAddr, len(data))
	fmt.Print(hex.Dump(data))
	return nil
}

func mediumName(m mirage.MediumType) string {
	switch m {
	case mirage.MediumCD:
		return "CD-ROM"
	case mirage.MediumCDROMXA:
		return "CD-ROM XA"
	case mirage.MediumCDI:
		return "CD-i"
	case mirage.MediumDVD:
		return "DVD-ROM"
	default:
		return "unknown"
	}
}
