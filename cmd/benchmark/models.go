package main

import "time"

// Envelope mirrors the gateway response; analyse is kept raw.
type Envelope struct {
	Status  string `json:"status"`
	Analyse any    `json:"analyse"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

type Chunk struct {
	Delta string `json:"delta"`
}

type BenchResult struct {
	File     string
	Format   string
	Status   string
	Duration time.Duration
	Chars    int
	Size     int64
	Err      error
}

type Agg struct {
	Count      int
	Partial    int
	Total      time.Duration
	TotalBytes int64
}
