// Command mkfs packs a directory of executables (or a cpio archive) into a
// fresh EasyFS image, mirroring original_source's easy-fs-fuse packer but
// as a cobra CLI with an added --list inspect mode and optional archival
// compression of the finished image.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cavaliercoder/go-cpio"
	"github.com/google/renameio"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nanokernel/easyfs/internal/blockdev"
	"github.com/nanokernel/easyfs/internal/compress"
	"github.com/nanokernel/easyfs/internal/easyfs"
	"github.com/nanokernel/easyfs/internal/vfs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mkfs:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		output            string
		sourceDir         string
		cpioPath          string
		totalBlocks       uint32
		inodeBitmapBlocks uint32
		algo              string
		listOnly          string
	)

	cmd := &cobra.Command{
		Use:   "mkfs",
		Short: "Pack files into an EasyFS image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listOnly != "" {
				return runList(listOnly)
			}
			return runPack(output, sourceDir, cpioPath, totalBlocks, inodeBitmapBlocks, algo)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "fs.img", "path to write the EasyFS image to")
	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "directory of files to pack (one file per entry)")
	cmd.Flags().StringVar(&cpioPath, "cpio", "", "cpio archive to pack instead of --source")
	cmd.Flags().Uint32Var(&totalBlocks, "total-blocks", 16*2048, "image size in 512-byte blocks")
	cmd.Flags().Uint32Var(&inodeBitmapBlocks, "inode-bitmap-blocks", 1, "inode bitmap size in blocks")
	cmd.Flags().StringVar(&algo, "compress", "none", "none, zstd, or xz (requires a matching build tag)")
	cmd.Flags().StringVar(&listOnly, "list", "", "list the contents of an existing EasyFS image instead of packing")

	return cmd
}

func runPack(output, sourceDir, cpioPath string, totalBlocks, inodeBitmapBlocks uint32, algo string) error {
	if sourceDir == "" && cpioPath == "" {
		return fmt.Errorf("mkfs: one of --source or --cpio is required")
	}

	dev, err := blockdev.CreateFileDevice(output, uint64(totalBlocks))
	if err != nil {
		return err
	}
	defer dev.Close()

	fs, err := easyfs.Create(dev, totalBlocks, inodeBitmapBlocks, 16)
	if err != nil {
		return err
	}
	root := vfs.Root(fs)

	entries, err := collectEntries(sourceDir, cpioPath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		inode, err := root.Create(e.name)
		if err != nil {
			return fmt.Errorf("mkfs: create %s: %w", e.name, err)
		}
		if inode == nil {
			return fmt.Errorf("mkfs: %s already packed", e.name)
		}
		if _, err := inode.WriteAt(0, e.data); err != nil {
			return fmt.Errorf("mkfs: write %s: %w", e.name, err)
		}
	}
	if err := fs.SyncAll(); err != nil {
		return err
	}

	fmt.Println("List apps in root directory")
	names, err := root.Ls()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}

	if algo != "" && algo != "none" {
		return compressImage(output, algo)
	}
	return nil
}

type packEntry struct {
	name string
	data []byte
}

// collectEntries reads either a flat directory of ELF-ish files (stripping
// the first extension from each name, matching original_source's
// name_with_ext.drain) or a cpio archive.
func collectEntries(sourceDir, cpioPath string) ([]packEntry, error) {
	if cpioPath != "" {
		return readCpio(cpioPath)
	}
	dirEntries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, err
	}
	var out []packEntry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if dot := strings.Index(name, "."); dot >= 0 {
			name = name[:dot]
		}
		data, err := os.ReadFile(filepath.Join(sourceDir, de.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, packEntry{name: name, data: data})
	}
	return out, nil
}

func readCpio(path string) ([]packEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []packEntry
	r := cpio.NewReader(f)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Mode.IsDir() {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		out = append(out, packEntry{name: filepath.Base(hdr.Name), data: data})
	}
	return out, nil
}

func compressImage(path, algo string) error {
	var id compress.Algorithm
	switch algo {
	case "zstd":
		id = compress.Zstd
	case "xz":
		id = compress.XZ
	default:
		return fmt.Errorf("mkfs: unknown --compress value %q", algo)
	}
	codec, err := compress.Get(id)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	packed, err := codec.Compress(raw)
	if err != nil {
		return err
	}

	pending, err := renameio.TempFile("", path+"."+algo)
	if err != nil {
		return err
	}
	defer pending.Cleanup()
	if _, err := pending.Write(packed); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

func runList(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	dev, err := blockdev.OpenFileDevice(path, uint64(fi.Size())/blockdev.BlockSize, false)
	if err != nil {
		return err
	}
	defer dev.Close()
	fs, err := easyfs.Open(dev, 16)
	if err != nil {
		return err
	}
	root := vfs.Root(fs)
	names, err := root.Ls()
	if err != nil {
		return err
	}

	progress := isatty.IsTerminal(os.Stdout.Fd())
	for _, n := range names {
		inode, err := root.Find(n)
		if err != nil {
			return err
		}
		if progress {
			size, err := inode.Size()
			if err != nil {
				return err
			}
			fmt.Printf("%-27s %8d bytes\n", n, size)
		} else {
			fmt.Println(n)
		}
	}
	return nil
}
