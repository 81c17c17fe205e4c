package main

import (
	"context"
	"testing"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
)

func TestCheckTailable(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{"redis", false},
		{"", false},
		{"kafka", true},
		{"none", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			err := checkTailable(config.StreamConfig{Driver: tt.driver})
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkTailable(%q) = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
		})
	}
}

func TestTailStreamRefusesKafka(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = &config.Config{Stream: config.StreamConfig{Driver: "kafka"}}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := tailStream(ctx); err == nil {
		t.Fatal("tail-stream started against a kafka stream")
	}
}
