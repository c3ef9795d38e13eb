package main

import (
	"fmt"
	"os"
	"strings"
)

func template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		return hostTemplate, nil
	case "guest":
		return guestTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func writeTemplate(path, kind string, overwrite bool) error {
	body, err := template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(body), 0o600)
}

const hostTemplate = `name = "quizlink"
listen = ":9400"
link_path = "/link"
# advertise_url = "http://192.168.1.20:9400/link"
cors_origins = ["http://localhost:3000"]
questions = 5
answer_window = "20s"
round_delay = "5s"
max_players = 4
`

const guestTemplate = `hosts = ["http://127.0.0.1:9400/link"]
answer_window = "20s"
`
