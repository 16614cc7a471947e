// Package registry maps node types to their executors. It is filled once at
// startup and sealed before any run starts.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var (
	ErrSealed            = errors.New("registry is sealed")
	ErrAlreadyRegistered = errors.New("node type already registered")
	ErrInvalidNodeType   = errors.New("invalid node type")
	ErrNilExecutor       = errors.New("executor must not be nil")
)

// UnknownNodeTypeError is returned by Resolve for a type without executor.
// It is non-retriable.
type UnknownNodeTypeError struct {
	NodeType models.NodeType
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("No executor found for node type: %s", e.NodeType)
}

func (e *UnknownNodeTypeError) Is(target error) bool {
	return target == protocol.ErrNonRetriable //nolint:errorlint
}

type entry struct {
	descriptor protocol.NodeDescriptor
	executor   protocol.Executor
}

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	sealed  bool
	entries map[models.NodeType]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log.With("module", "registry"),
		entries: make(map[models.NodeType]entry),
	}
}

// Register binds descriptor.Type to executor.
func (r *Registry) Register(descriptor protocol.NodeDescriptor, executor protocol.Executor) error {
	if !descriptor.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidNodeType, descriptor.Type)
	}

	if executor == nil {
		return fmt.Errorf("%w: %s", ErrNilExecutor, descriptor.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrSealed, descriptor.Type)
	}

	if _, exists := r.entries[descriptor.Type]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, descriptor.Type)
	}

	r.entries[descriptor.Type] = entry{descriptor: descriptor, executor: executor}

	r.logger.Debug("Registered executor", "node_type", string(descriptor.Type))

	return nil
}

// Seal makes the registry read-only. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sealed
}

func (r *Registry) Resolve(nodeType models.NodeType) (protocol.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[nodeType]
	if !ok {
		return nil, &UnknownNodeTypeError{NodeType: nodeType}
	}

	return e.executor, nil
}

// Types returns the registered node types in models.NodeTypes order.
func (r *Registry) Types() []models.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.NodeType, 0, len(r.entries))

	for _, nodeType := range models.NodeTypes {
		if _, ok := r.entries[nodeType]; ok {
			types = append(types, nodeType)
		}
	}

	return types
}

// Descriptors returns the descriptors of the registered node types in
// models.NodeTypes order.
func (r *Registry) Descriptors() []protocol.NodeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]protocol.NodeDescriptor, 0, len(r.entries))

	for _, nodeType := range models.NodeTypes {
		if e, ok := r.entries[nodeType]; ok {
			descriptors = append(descriptors, e.descriptor)
		}
	}

	return descriptors
}

// HealthCheck fails unless the registry is sealed and every known node type
// has an executor.
func (r *Registry) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.sealed {
		return errors.New("registry is not sealed")
	}

	var missing []string

	for _, nodeType := range models.NodeTypes {
		if _, ok := r.entries[nodeType]; !ok {
			missing = append(missing, string(nodeType))
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return fmt.Errorf("no executor registered for node types: %v", missing)
	}

	return nil
}
