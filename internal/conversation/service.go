package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cchalm/memochat/internal/ai"
	"github.com/cchalm/memochat/internal/checkpoint"
	"github.com/cchalm/memochat/internal/config"
)

// ErrNotConfigured is returned by operations that need a model before Configure has succeeded
var ErrNotConfigured = errors.New("model settings are not configured")

// ClientFactory builds a model client from a settings bundle
type ClientFactory func(settings config.Settings) (ai.ModelClient, error)

// ServiceOptions holds the optional collaborators of a Service
type ServiceOptions struct {
	Logger          *slog.Logger
	Tracer          trace.Tracer
	Retention       Retention
	RequestTimeout  time.Duration // Per model call; zero means no timeout
	MaxOutputTokens int64
	NewClient       ClientFactory // Defaults to ai.NewModelClient
	Now             func() time.Time
}

// Service is the entry point for front-ends. It owns the current model settings, re-deriving the model client and
// state machine whenever they change, and serializes turns per thread.
type Service struct {
	store     checkpoint.Store
	logger    *slog.Logger
	tracer    trace.Tracer
	retention Retention
	timeout   time.Duration
	newClient ClientFactory
	now       func() time.Time

	mu          sync.Mutex
	configured  bool
	settings    config.Settings
	client      ai.ModelClient
	machine     *Machine
	threadLocks map[string]*threadLock
}

// threadLock serializes turns on one thread. refs counts the turns holding or waiting for it, so the entry can be
// dropped once the last one finishes.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(store checkpoint.Store, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	newClient := opts.NewClient
	if newClient == nil {
		maxOutputTokens := opts.MaxOutputTokens
		newClient = func(settings config.Settings) (ai.ModelClient, error) {
			return ai.NewModelClient(settings, maxOutputTokens, logger)
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       store,
		logger:      logger,
		tracer:      opts.Tracer,
		retention:   opts.Retention,
		timeout:     opts.RequestTimeout,
		newClient:   newClient,
		now:         now,
		threadLocks: make(map[string]*threadLock),
	}
}

// Configure applies a settings bundle. The model client, generator, summarizer and machine are rebuilt only when the
// bundle differs from the one currently applied.
func (s *Service) Configure(settings config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.configured && s.settings == settings {
		return nil
	}
	if !settings.Configured() {
		return fmt.Errorf("incomplete model settings: %w", ErrNotConfigured)
	}

	client, err := s.newClient(settings)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	generator := ai.GeneratorWithTimeout(ai.NewModelResponseGenerator(client, settings.Model), s.timeout)
	summarizer := ai.SummarizerWithTimeout(ai.NewModelSummarizer(client, settings.Model), s.timeout)

	s.client = client
	s.machine = NewMachine(generator, summarizer, s.store, MachineOptions{
		Logger:    s.logger,
		Tracer:    s.tracer,
		Retention: s.retention,
	})
	s.settings = settings
	s.configured = true

	s.logger.Info("model settings applied", "provider", settings.Provider, "model", settings.Model, "base_url", settings.BaseURL)
	return nil
}

// SendMessage runs one turn on the thread and returns the checkpointed state. Turns on the same thread run one at a
// time; turns on different threads may run concurrently.
func (s *Service) SendMessage(ctx context.Context, threadID string, text string) (ai.ConversationState, error) {
	s.mu.Lock()
	machine := s.machine
	s.mu.Unlock()

	if machine == nil {
		return ai.ConversationState{}, ErrNotConfigured
	}

	lock := s.acquireThread(threadID)
	defer s.releaseThread(threadID, lock)
	return machine.RunTurn(ctx, Turn{ThreadID: threadID, Input: text})
}

// Thread returns the thread's persisted state, or an empty state if it has never been checkpointed
func (s *Service) Thread(ctx context.Context, threadID string) (ai.ConversationState, error) {
	state, err := s.store.Get(ctx, threadID)
	if errors.Is(err, checkpoint.ErrStorageUnavailable) {
		return ai.NewConversationState(threadID), nil
	} else if err != nil {
		return ai.ConversationState{}, fmt.Errorf("failed to load thread %q: %w", threadID, err)
	}
	if state == nil {
		return ai.NewConversationState(threadID), nil
	}
	return *state, nil
}

// Threads lists every checkpointed thread, descending by id
func (s *Service) Threads(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListThreadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return ids, nil
}

// NewThread returns the id for a new thread. The thread is not persisted until its first turn completes.
func (s *Service) NewThread() string {
	return NewThreadID(s.now())
}

// Models lists the models offered by the configured provider
func (s *Service) Models(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return nil, ErrNotConfigured
	}
	return listModels(ctx, client)
}

// ModelsFor lists the models offered by the provider in settings, which need credentials but no model name. The
// configured client is reused when settings match it; otherwise a client is built for this call only.
func (s *Service) ModelsFor(ctx context.Context, settings config.Settings) ([]string, error) {
	s.mu.Lock()
	client := s.client
	if !s.configured || s.settings != settings {
		client = nil
	}
	s.mu.Unlock()

	if client == nil {
		if !settings.HasCredentials() {
			return nil, fmt.Errorf("missing provider credentials: %w", ErrNotConfigured)
		}
		var err error
		client, err = s.newClient(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
	}
	return listModels(ctx, client)
}

func listModels(ctx context.Context, client ai.ModelClient) ([]string, error) {
	ids, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return ids, nil
}

// acquireThread locks threadID, blocking while another turn on it is running
func (s *Service) acquireThread(threadID string) *threadLock {
	s.mu.Lock()
	lock, ok := s.threadLocks[threadID]
	if !ok {
		lock = &threadLock{}
		s.threadLocks[threadID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseThread unlocks threadID and forgets its lock when no other turn holds or awaits it
func (s *Service) releaseThread(threadID string, lock *threadLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.threadLocks, threadID)
	}
}
