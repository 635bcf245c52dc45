package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/opsloop/triage/internal/config"
	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/models"
)

var logger = logging.GetLogger("mcp")

// provider is one connected (or failed) tool provider.
type provider struct {
	cfg    config.ProviderConfig
	sess   session
	status ProviderStatus
	tools  []models.ToolDescriptor
}

// Registry connects to the configured tool providers, aggregates their
// tools into a single catalog, and routes invocations to the owning
// provider. A provider that fails to connect is recorded as failed and
// skipped; duplicate tool names across providers are a configuration
// error because routing would be ambiguous.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider
	toolIndex map[string]*provider

	version string

	// dial is swappable for tests.
	dial func(ctx context.Context, cfg config.ProviderConfig) (session, error)
}

// NewRegistry creates an empty registry. Call Initialize to connect.
func NewRegistry(version string) *Registry {
	return &Registry{
		providers: make(map[string]*provider),
		toolIndex: make(map[string]*provider),
		version:   version,
		dial:      dialProvider,
	}
}

// dialProvider opens a transport to one provider. Stdio clients spawn the
// subprocess on creation; HTTP clients need an explicit Start.
func dialProvider(ctx context.Context, cfg config.ProviderConfig) (session, error) {
	switch cfg.Transport {
	case config.TransportStdio:
		c, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to spawn stdio provider: %w", err)
		}
		return c, nil

	case config.TransportHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err := mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create http provider client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start http provider client: %w", err)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Initialize connects every enabled provider and builds the tool catalog.
// Individual provider failures are tolerated: the provider is marked
// failed and the rest of the catalog stays usable. Only a duplicate tool
// name is fatal.
func (r *Registry) Initialize(ctx context.Context, cfgs []config.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.initializeLocked(ctx, cfgs)
}

func (r *Registry) initializeLocked(ctx context.Context, cfgs []config.ProviderConfig) error {
	for _, cfg := range cfgs {
		p := r.connectProvider(ctx, cfg)
		r.providers[cfg.Name] = p

		if p.status.State != StateReady {
			continue
		}

		for i := range p.tools {
			name := p.tools[i].Name
			if owner, exists := r.toolIndex[name]; exists {
				r.closeAllLocked()
				return config.NewConfigError(fmt.Sprintf(
					"tool %q is exposed by both provider %q and provider %q",
					name, owner.cfg.Name, cfg.Name))
			}
			r.toolIndex[name] = p
		}
	}

	ready := 0
	for _, p := range r.providers {
		if p.status.State == StateReady {
			ready++
		}
	}
	if ready == 0 && len(cfgs) > 0 {
		logger.Warn("No tool providers available, investigations will run without tools")
	}

	logger.InfoWithFields("Tool provider registry initialized",
		logging.Field("providers", len(r.providers)),
		logging.Field("ready", ready),
		logging.Field("tools", len(r.toolIndex)))
	return nil
}

// connectProvider dials, handshakes, and lists tools for one provider.
// Every failure path returns a provider in the failed state.
func (r *Registry) connectProvider(ctx context.Context, cfg config.ProviderConfig) *provider {
	p := &provider{
		cfg: cfg,
		status: ProviderStatus{
			Name:      cfg.Name,
			Transport: cfg.Transport,
		},
	}

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	sess, err := r.dial(hctx, cfg)
	if err != nil {
		p.status.State = StateFailed
		p.status.Error = err.Error()
		logger.WarnWithFields("Tool provider connection failed",
			logging.Field("provider", cfg.Name),
			logging.Field("transport", cfg.Transport),
			logging.Field("error", err.Error()))
		return p
	}

	initReq := mcptypes.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcptypes.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcptypes.Implementation{
		Name:    "triage",
		Version: r.version,
	}
	if _, err := sess.Initialize(hctx, initReq); err != nil {
		_ = sess.Close()
		p.status.State = StateFailed
		p.status.Error = fmt.Sprintf("initialize handshake failed: %v", err)
		logger.WarnWithFields("Tool provider handshake failed",
			logging.Field("provider", cfg.Name),
			logging.Field("error", err.Error()))
		return p
	}

	listResult, err := sess.ListTools(hctx, mcptypes.ListToolsRequest{})
	if err != nil {
		_ = sess.Close()
		p.status.State = StateFailed
		p.status.Error = fmt.Sprintf("tool discovery failed: %v", err)
		logger.WarnWithFields("Tool discovery failed",
			logging.Field("provider", cfg.Name),
			logging.Field("error", err.Error()))
		return p
	}

	p.sess = sess
	p.status.State = StateReady
	p.tools = make([]models.ToolDescriptor, 0, len(listResult.Tools))
	for _, tool := range listResult.Tools {
		p.tools = append(p.tools, models.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: models.ToolInputSchema{
				Type:       tool.InputSchema.Type,
				Properties: tool.InputSchema.Properties,
				Required:   tool.InputSchema.Required,
			},
			Provider: cfg.Name,
		})
	}
	p.status.ToolCount = len(p.tools)

	logger.InfoWithFields("Tool provider connected",
		logging.Field("provider", cfg.Name),
		logging.Field("transport", cfg.Transport),
		logging.Field("tools", len(p.tools)))
	return p
}

// Catalog returns the aggregated tool descriptors, sorted by name.
func (r *Registry) Catalog() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ToolDescriptor, 0, len(r.toolIndex))
	for name, p := range r.toolIndex {
		for i := range p.tools {
			if p.tools[i].Name == name {
				out = append(out, p.tools[i])
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Providers returns a status snapshot for every configured provider,
// sorted by name.
func (r *Registry) Providers() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// lookup resolves a tool name to its owning provider session.
func (r *Registry) lookup(name string) (session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.toolIndex[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return p.sess, nil
}

// Reload tears down all provider sessions and reconnects with the new
// configuration. In-flight invocations against old sessions fail and are
// surfaced as tool-failure evidence, which is acceptable during a reload.
func (r *Registry) Reload(ctx context.Context, cfgs []config.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeAllLocked()
	r.providers = make(map[string]*provider)
	r.toolIndex = make(map[string]*provider)

	logger.Info("Reloading tool provider registry")
	return r.initializeLocked(ctx, cfgs)
}

// Close shuts down all provider sessions.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeAllLocked()
	return nil
}

func (r *Registry) closeAllLocked() {
	for _, p := range r.providers {
		if p.sess != nil {
			if err := p.sess.Close(); err != nil {
				logger.DebugWithFields("Error closing provider session",
					logging.Field("provider", p.cfg.Name),
					logging.Field("error", err.Error()))
			}
			p.sess = nil
		}
	}
}
