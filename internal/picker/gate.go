package picker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// PermissionGate answers whether the camera may be opened. Implementations
// may prompt the user the first time they are asked.
type PermissionGate interface {
	HasCameraPermission(ctx context.Context) bool
}

// StaticGate always gives the same answer.
type StaticGate bool

func (g StaticGate) HasCameraPermission(context.Context) bool {
	return bool(g)
}

// PromptGate asks once on a terminal and remembers the answer, the way the
// OS remembers a runtime permission decision.
type PromptGate struct {
	in  *bufio.Reader
	out io.Writer

	mu      sync.Mutex
	asked   bool
	granted bool
}

func NewPromptGate(in *bufio.Reader, out io.Writer) *PromptGate {
	return &PromptGate{in: in, out: out}
}

func (g *PromptGate) HasCameraPermission(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.asked {
		return g.granted
	}
	if ctx.Err() != nil {
		return false
	}

	fmt.Fprint(g.out, "Allow access to the camera? [y/N] ")
	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		log.Debug("[Permission] Couldn't read answer: ", err.Error())
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	g.asked = true
	g.granted = answer == "y" || answer == "yes"
	log.WithField("granted", g.granted).Debug("[Permission] Camera permission decided")
	return g.granted
}
