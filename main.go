package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/tideway/tideway/engine"
	"github.com/tideway/tideway/sample"
)

func main() {
	var (
		dir    = flag.String("samples", "samples", "directory of wav files or named sample sets")
		cps    = flag.Float64("cps", 0.5625, "cycles per second")
		block  = flag.Int("block", 512, "frames per audio block")
		voices = flag.Int("voices", 64, "polyphony")
		run    = flag.String("run", "", "file of commands to run at startup")
	)
	flag.Parse()

	const sampleRate = 44100

	bank, err := sample.LoadDir(*dir)
	if err != nil {
		log.Printf("loading %s: %v", *dir, err)
		bank = sample.NewBank()
	}
	log.Printf("loaded %d sample sets from %s", len(bank.Names()), *dir)

	var commands []string
	if *run != "" {
		f, err := os.Open(*run)
		if err != nil {
			log.Fatal(err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			commands = append(commands, strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			log.Fatal(err)
		}
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer portaudio.Terminate()

	eng := engine.New(engine.Config{
		SampleRate: sampleRate,
		BlockSize:  *block,
		Voices:     *voices,
		CPS:        *cps,
	}, bank)
	defer eng.Close()

	session := newSession(eng, bank)

	stream, err := portaudio.OpenDefaultStream(0, 2, sampleRate, *block, session.process)
	if err != nil {
		log.Fatal(err)
	}
	if err := stream.Start(); err != nil {
		log.Fatal(err)
	}
	defer stream.Close()

	for _, line := range commands {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := session.exec(line); err != nil {
			log.Fatal(err)
		}
	}

	if err := repl(session); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
