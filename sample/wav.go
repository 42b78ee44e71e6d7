package sample

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/youpy/go-wav"
)

// Load decodes a WAV file into a mono sample. Multichannel files are mixed
// down by taking channel 0, matching how drum sample packs are typically
// authored.
func Load(file string) (*Sample, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	s := &Sample{
		Name: sampleName(file),
		File: file,
		Rate: int(format.SampleRate),
	}
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for _, sample := range samples {
			s.Data = append(s.Data, float32(r.FloatValue(sample, 0)))
		}
	}
	return s, nil
}

// LoadDir fills a bank from a directory. Two layouts are accepted:
// subdirectories become names with their WAV files as indexed variants
// (dirt-samples style), and WAV files directly in dir become single-variant
// names. Undecodable files are logged and skipped.
func LoadDir(dir string) (*Bank, error) {
	bank := NewBank()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := loadSet(bank, e.Name(), filepath.Join(dir, e.Name())); err != nil {
				return nil, err
			}
			continue
		}
		if !isWav(e.Name()) {
			continue
		}
		file := filepath.Join(dir, e.Name())
		s, err := Load(file)
		if err != nil {
			log.Printf("sample: skipping %s: %v", file, err)
			continue
		}
		bank.Add(s.Name, s)
	}
	return bank, nil
}

func loadSet(bank *Bank, name, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, file := range files {
		if !isWav(file) {
			continue
		}
		s, err := Load(file)
		if err != nil {
			log.Printf("sample: skipping %s: %v", file, err)
			continue
		}
		s.Name = name
		bank.Add(name, s)
	}
	return nil
}

func isWav(file string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	return ext == ".wav" || ext == ".wave"
}

func sampleName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
