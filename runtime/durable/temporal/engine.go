package temporal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"goa.design/toolflow/runtime/durable"
	"goa.design/toolflow/runtime/telemetry"
)

// Options configures the Temporal engine adapter. Either a pre-configured
// Client or ClientOptions must be provided. The adapter wires OTEL
// instrumentation automatically and manages one worker per task queue.
type Options struct {
	// Client is an optional pre-configured Temporal client. If nil, the
	// adapter creates a lazy client from ClientOptions so OTEL interceptors
	// can be installed automatically.
	Client client.Client

	// ClientOptions describe how to construct the Temporal client when
	// Client is nil. Required when Client is nil.
	ClientOptions *client.Options

	// WorkerOptions configures worker defaults. TaskQueue is required and is
	// the queue used by activities that do not name one.
	WorkerOptions WorkerOptions

	// Instrumentation toggles OTEL tracing and metrics for the client and
	// workers. Both are enabled by default.
	Instrumentation InstrumentationOptions

	// DisableWorkerAutoStart disables starting workers on first use. Set it
	// when registration order matters and workers should be started manually
	// through Worker().Start().
	DisableWorkerAutoStart bool

	// Logger emits worker and activity diagnostics. Defaults to a noop
	// logger.
	Logger telemetry.Logger
}

// WorkerOptions configures the shared worker settings applied to every task
// queue the engine manages. Activities targeting distinct queues each get a
// worker built from these settings.
type WorkerOptions struct {
	// TaskQueue is the default queue used when activity options omit one.
	// Required.
	TaskQueue string

	// Options are forwarded to Temporal's worker.New constructor.
	Options worker.Options
}

// InstrumentationOptions configures OTEL tracing and metrics wiring for the
// Temporal client and workers.
type InstrumentationOptions struct {
	// DisableTracing skips installing the OTEL tracing interceptor.
	DisableTracing bool

	// DisableMetrics skips installing the OTEL metrics handler.
	DisableMetrics bool

	// TracerOptions customize the OTEL tracing interceptor.
	TracerOptions temporalotel.TracerOptions

	// MetricsOptions customize the OTEL metrics handler.
	MetricsOptions temporalotel.MetricsHandlerOptions
}

// Engine implements durable.Engine on top of Temporal. It registers
// call_tool activities with per-queue workers and exposes worker lifecycle
// control. All methods are safe for concurrent use.
type Engine struct {
	client      client.Client
	closeClient bool

	defaultQueue      string
	workerOpts        worker.Options
	autoStartDisabled bool

	logger telemetry.Logger

	mu              sync.Mutex
	workers         map[string]*workerBundle
	workersStarted  bool
	activityOptions map[string]durable.ActivityOptions
}

// New constructs a Temporal engine adapter. Either Client or ClientOptions
// must be provided and WorkerOptions must name a default task queue.
func New(opts Options) (*Engine, error) {
	defaultQueue := opts.WorkerOptions.TaskQueue
	if defaultQueue == "" {
		return nil, fmt.Errorf("temporal engine: worker options must include a default task queue")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	inst, err := configureInstrumentation(opts.Instrumentation)
	if err != nil {
		return nil, err
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal engine: client options are required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		applyClientInstrumentation(&clientOpts, inst)
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: create client: %w", err)
		}
		closeClient = true
	}

	workerOpts := opts.WorkerOptions.Options
	applyWorkerInstrumentation(&workerOpts, inst)

	return &Engine{
		client:            cli,
		closeClient:       closeClient,
		defaultQueue:      defaultQueue,
		workerOpts:        workerOpts,
		autoStartDisabled: opts.DisableWorkerAutoStart,
		logger:            logger,
		workers:           make(map[string]*workerBundle),
		activityOptions:   make(map[string]durable.ActivityOptions),
	}, nil
}

// RegisterCallToolActivity registers a call_tool activity with the worker for
// its queue. The handler is wrapped so non-retryable tool errors surface as
// Temporal non-retryable application errors. Registration must happen before
// workers start polling the queue.
func (e *Engine) RegisterCallToolActivity(_ context.Context, act durable.Activity) error {
	if act.Name == "" {
		return fmt.Errorf("temporal engine: activity name cannot be empty")
	}
	if act.Handler == nil {
		return fmt.Errorf("temporal engine: activity %q has no handler", act.Name)
	}
	queue := act.Options.Queue
	if queue == "" {
		queue = e.defaultQueue
	}
	bundle, err := e.workerForQueue(queue)
	if err != nil {
		return err
	}

	handler := act.Handler
	bundle.registerActivity(act.Name, func(actx context.Context, input *durable.CallToolInput, deps json.RawMessage) (json.RawMessage, error) {
		out, err := handler(actx, input, deps)
		if err != nil {
			return nil, convertError(err)
		}
		return out, nil
	})

	e.mu.Lock()
	if _, dup := e.activityOptions[act.Name]; dup {
		e.mu.Unlock()
		return fmt.Errorf("temporal engine: activity %q already registered", act.Name)
	}
	e.activityOptions[act.Name] = act.Options
	e.mu.Unlock()

	if !e.autoStartDisabled {
		e.ensureWorkersStarted()
	}
	return nil
}

// Worker returns a controller for starting and stopping the engine's
// workers. Only needed when DisableWorkerAutoStart is set.
func (e *Engine) Worker() *WorkerController {
	return &WorkerController{engine: e}
}

// Close shuts down the Temporal client if the engine created it. Stop
// workers first via Worker().Stop().
func (e *Engine) Close() {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
}

// Client exposes the underlying Temporal client so callers can start
// workflows that use durable toolsets via NewWorkflowContext.
func (e *Engine) Client() client.Client {
	return e.client
}

func (e *Engine) workerForQueue(queue string) (*workerBundle, error) {
	if queue == "" {
		return nil, fmt.Errorf("temporal engine: no task queue configured")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if bundle, ok := e.workers[queue]; ok {
		return bundle, nil
	}

	w := worker.New(e.client, queue, e.workerOpts)
	bundle := &workerBundle{
		queue:  queue,
		worker: w,
		logger: e.logger,
	}
	e.workers[queue] = bundle
	if e.workersStarted {
		bundle.start()
	}
	return bundle, nil
}

func (e *Engine) ensureWorkersStarted() {
	e.mu.Lock()
	if e.workersStarted {
		e.mu.Unlock()
		return
	}
	e.workersStarted = true
	bundles := make([]*workerBundle, 0, len(e.workers))
	for _, b := range e.workers {
		bundles = append(bundles, b)
	}
	e.mu.Unlock()
	for _, b := range bundles {
		b.start()
	}
}

func (e *Engine) activityDefaultsFor(name string) durable.ActivityOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activityOptions[name]
}

// WorkerController manages worker lifecycle for all task queues managed by
// the engine. Controllers obtained from the same engine share state.
type WorkerController struct {
	engine *Engine
}

// Start launches all registered workers. Workers registered afterwards are
// started as they are created.
func (c *WorkerController) Start() error {
	c.engine.ensureWorkersStarted()
	return nil
}

// Stop gracefully stops all workers managed by the engine.
func (c *WorkerController) Stop() {
	c.engine.mu.Lock()
	bundles := make([]*workerBundle, 0, len(c.engine.workers))
	for _, b := range c.engine.workers {
		bundles = append(bundles, b)
	}
	c.engine.mu.Unlock()

	for _, b := range bundles {
		b.stop()
	}
}

type workerBundle struct {
	queue  string
	worker worker.Worker
	logger telemetry.Logger

	startOnce sync.Once
}

func (b *workerBundle) start() {
	b.startOnce.Do(func() {
		go func() {
			if err := b.worker.Run(worker.InterruptCh()); err != nil {
				b.logger.Error(context.Background(), "temporal worker exited", "queue", b.queue, "err", err)
			}
		}()
	})
}

func (b *workerBundle) stop() {
	b.worker.Stop()
}

func (b *workerBundle) registerActivity(name string, fn any) {
	b.worker.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

// convertError maps tool errors to their Temporal renditions. Errors marked
// non-retryable become non-retryable application errors so Temporal fails
// the activity immediately instead of retrying a call that cannot succeed.
func convertError(err error) error {
	if durable.IsNonRetryable(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "ToolsetConfigError", err)
	}
	return err
}

type instrumentation struct {
	tracer  interceptor.Interceptor
	metrics client.MetricsHandler
}

func configureInstrumentation(opts InstrumentationOptions) (*instrumentation, error) {
	inst := &instrumentation{}
	if !opts.DisableTracing {
		tracer, err := temporalotel.NewTracingInterceptor(opts.TracerOptions)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: configure tracing interceptor: %w", err)
		}
		inst.tracer = tracer
	}
	if !opts.DisableMetrics {
		inst.metrics = temporalotel.NewMetricsHandler(opts.MetricsOptions)
	}
	if inst.tracer == nil && inst.metrics == nil {
		return nil, nil
	}
	return inst, nil
}

func applyClientInstrumentation(opts *client.Options, inst *instrumentation) {
	if inst == nil {
		return
	}
	if inst.tracer != nil {
		opts.Interceptors = append(opts.Interceptors, inst.tracer)
	}
	if inst.metrics != nil && opts.MetricsHandler == nil {
		opts.MetricsHandler = inst.metrics
	}
}

func applyWorkerInstrumentation(opts *worker.Options, inst *instrumentation) {
	if inst == nil {
		return
	}
	if inst.tracer != nil {
		opts.Interceptors = append(opts.Interceptors, inst.tracer)
	}
}
