package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

func repl(s *session) error {
	rl, err := readline.New("tideway> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		result, err := s.exec(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if result != "" {
			fmt.Println(result)
		}
	}
}
