// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/penumbra/utility/kar"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

func init() {
	currentUserName = "unknown"
	if u, err := user.Current(); err == nil {
		currentUserName = u.Username
	}
}

var currentUserName string

var (
	author   = flag.String("author", "", "Set the author of the package when compressing, defaults to the current user")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the file given")
	compress = flag.String("c", "", "Compress the given file/folder")
	dstFile  = flag.String("f", "out.kar", "Destination file, or directory when extracting")
	silent   = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()

	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	if *extract != "" && *compress != "" {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
	case *extract != "":
		err = extractFiles()
	case *compress != "":
		err = compressFiles()
	default:
		flag.PrintDefaults()
		return
	}
	if err != nil {
		log.WithError(err).Fatal("kar failed")
	}
}

func compressFiles() error {
	if _, err := os.Stat(*dstFile); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	err := filepath.Walk(*compress, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		filesToCompress = append(filesToCompress, path)
		return nil
	})
	if err != nil {
		return err
	}

	name := *author
	if name == "" {
		name = currentUserName
	}
	karBuilder, err := kar.NewBuilder(kar.Header{
		Author:      name,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		if err := addFile(karBuilder, ftc); err != nil {
			return err
		}
		log.WithField("file", ftc).Info("added")
	}

	dst, err := os.Create(*dstFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	written, err := karBuilder.WriteTo(dst)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"archive": *dstFile,
		"files":   len(filesToCompress),
		"bytes":   written,
	}).Info("archive written")
	return nil
}

func addFile(b *kar.Builder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(filepath.ToSlash(path), f)
}

func extractFiles() error {
	r, err := mmap.Open(*extract)
	if err != nil {
		return err
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		return err
	}

	dir := *dstFile
	if dir == "out.kar" {
		dir = "."
	}
	for _, name := range ar.Names() {
		if err := extractFile(ar, dir, name); err != nil {
			return err
		}
		log.WithField("file", name).Info("extracted")
	}
	return nil
}

func extractFile(ar *kar.Archive, dir, name string) error {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if rel, err := filepath.Rel(dir, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New("refusing to extract outside the destination: " + name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := ar.Open(name)
	if err != nil {
		return err
	}
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}
