// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tts provides text-to-speech synthesis for the voice gateway.
package tts

import (
	"context"
	"sync"
)

// SynthesizeOptions configures a synthesis request.
type SynthesizeOptions struct {
	Voice      string // Voice identifier
	Format     string // Codec, "mp3" or "pcm"; a provider-qualified name is passed through
	SampleRate int    // Output rate in Hz; 0 means the codec's default
}

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// SynthesizeStream converts text to a stream of audio chunks. Chunks are
	// delivered in generation order and are never duplicated.
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error)
}

// SynthesisStream carries audio chunks from a provider to a consumer.
// Closing the stream early abandons the remaining audio.
type SynthesisStream struct {
	chunks chan []byte

	errMu sync.Mutex
	err   error

	done       chan struct{}
	doneOnce   sync.Once
	finishOnce sync.Once
}

func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// Chunks returns the audio chunk channel. The channel is closed when
// synthesis finishes or the stream is closed.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Send delivers one chunk to the consumer. It returns false when the stream
// was closed, signalling the producer to stop.
func (s *SynthesisStream) Send(chunk []byte) bool {
	if len(chunk) == 0 {
		return true
	}
	// Check done first: with buffer space free, a two-way select would pick
	// between the send and the closed done channel at random.
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// FinishSending marks the producer side complete and closes the chunk
// channel. Only the producer may call it.
func (s *SynthesisStream) FinishSending() {
	s.doneOnce.Do(func() { close(s.done) })
	s.finishOnce.Do(func() { close(s.chunks) })
}

// Close abandons the stream from the consumer side. The producer observes
// the closed done channel on its next Send and stops. Safe to call more
// than once and concurrently with the producer.
func (s *SynthesisStream) Close() {
	s.doneOnce.Do(func() { close(s.done) })
}

// SetError records a synthesis failure for the consumer to inspect after the
// chunk channel closes.
func (s *SynthesisStream) SetError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns the first error recorded by the producer, if any.
func (s *SynthesisStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
