package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Executor manages tool registration and execution.
type Executor struct {
	mu    sync.RWMutex
	tools map[ToolType]Tool
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{tools: make(map[ToolType]Tool)}
}

// Register adds a tool to the executor.
func (e *Executor) Register(tool Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tools[tool.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name())
	}
	e.tools[tool.Name()] = tool
	return nil
}

// GetTool returns a registered tool by name.
func (e *Executor) GetTool(name ToolType) (Tool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tool, ok := e.tools[name]
	return tool, ok
}

// Names returns the registered tool names.
func (e *Executor) Names() []ToolType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]ToolType, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

// Execute validates and runs a tool request.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Result, error) {
	tool, ok := e.GetTool(req.Tool)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", req.Tool)
	}

	if err := tool.Validate(req); err != nil {
		return nil, fmt.Errorf("validate %s: %w", req.Tool, err)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, req)
	log.Debug().
		Str("tool", string(req.Tool)).
		Dur("duration", time.Since(start)).
		Bool("ok", err == nil).
		Msg("tool executed")
	return result, err
}
