// Package gatetest provides scripted Gate and Notifier implementations for
// tests of packages that wait on operator confirmation.
package gatetest

import (
	"context"
	"fmt"
	"sync"

	"console/internal/gate"
)

// Gate answers confirmations from a fixed script. When the script runs out
// it answers with Default.
type Gate struct {
	mu      sync.Mutex
	answers []bool
	Default bool
	Prompts []gate.Prompt
}

// Answer returns a gate that replies with answers in order.
func Answer(answers ...bool) *Gate {
	return &Gate{answers: answers}
}

func (g *Gate) Confirm(ctx context.Context, p gate.Prompt) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, p)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(g.answers) == 0 {
		return g.Default, nil
	}
	a := g.answers[0]
	g.answers = g.answers[1:]
	return a, nil
}

// Asked returns how many prompts were shown.
func (g *Gate) Asked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Prompts)
}

// Notifier records every notice.
type Notifier struct {
	mu        sync.Mutex
	Open      int
	Titles    []string
	Successes []string
	Warnings  []string
	Errors    []string
}

func (n *Notifier) Progress(title string) func() {
	n.mu.Lock()
	n.Open++
	n.Titles = append(n.Titles, title)
	n.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			n.Open--
			n.mu.Unlock()
		})
	}
}

func (n *Notifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Successes = append(n.Successes, msg)
}

func (n *Notifier) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Warnings = append(n.Warnings, msg)
}

func (n *Notifier) Error(op string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Errors = append(n.Errors, fmt.Sprintf("%s: %v", op, err))
}
