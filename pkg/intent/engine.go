package intent

import (
	"log/slog"
	"sync"
	"time"

	"github.com/presage-dev/presage/pkg/protocol"
	"github.com/presage-dev/presage/pkg/vtree"
)

// Requester sends forecast requests to the server side. A single call
// may carry piggybacked requests for related candidates; the transport
// should keep them in one message.
type Requester interface {
	RequestForecasts(reqs []*protocol.ForecastRequest)
}

// ApplyFunc applies pre-fetched patches when a predicted observation
// comes true.
type ApplyFunc func(observableID string, patches []vtree.Patch)

// Config tunes the engine.
type Config struct {
	// ArmThreshold is the minimum confidence before a prediction is
	// requested. Default: 0.7.
	ArmThreshold float64

	// PiggybackThreshold is the confidence above which up to two
	// related candidates ride along in the same request. Default: 0.9.
	PiggybackThreshold float64

	// LeadTime is how far ahead patches should be ready. Requested
	// predictions time out after 1.5x this. Default: 400ms.
	LeadTime time.Duration

	// Tick is the re-evaluation and timeout sweep interval.
	// Default: 50ms.
	Tick time.Duration

	// WindowSize is the signal ring capacity. Default: 16.
	WindowSize int

	// ViewportHeight is used by visibility candidates. Default: 800.
	ViewportHeight float64

	Logger *slog.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ArmThreshold:       0.7,
		PiggybackThreshold: 0.9,
		LeadTime:           400 * time.Millisecond,
		Tick:               50 * time.Millisecond,
		WindowSize:         16,
		ViewportHeight:     800,
	}
}

// Engine turns raw interaction signals into forecast requests. All
// mutable state lives inside the run goroutine; the public methods
// only pass messages, so there is no shared-memory locking anywhere in
// the signal path.
type Engine struct {
	cfg   Config
	req   Requester
	apply ApplyFunc
	cache *Cache
	log   *slog.Logger

	cmds chan any
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

type registerCmd struct{ c Candidate }
type removeCmd struct{ id string }
type pointerCmd struct{ s PointerSample }
type scrollCmd struct{ s ScrollSample }
type deliverCmd struct{ resp *protocol.ForecastResponse }
type observeCmd struct {
	id, value string
	applied   chan bool
}
type phaseCmd struct {
	id    string
	reply chan Phase
}

// NewEngine creates an engine. Call Start to begin processing.
func NewEngine(cfg Config, req Requester, apply ApplyFunc) *Engine {
	def := DefaultConfig()
	if cfg.ArmThreshold <= 0 {
		cfg.ArmThreshold = def.ArmThreshold
	}
	if cfg.PiggybackThreshold <= 0 {
		cfg.PiggybackThreshold = def.PiggybackThreshold
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = def.LeadTime
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		cfg:   cfg,
		req:   req,
		apply: apply,
		cache: NewCache(cfg.LeadTime * 3 / 2),
		log:   cfg.Logger,
		cmds:  make(chan any, 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the engine goroutine.
func (e *Engine) Start() {
	go e.run()
}

// Stop shuts the engine down and waits for the goroutine to exit.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.quit) })
	<-e.done
}

func (e *Engine) send(cmd any) bool {
	select {
	case e.cmds <- cmd:
		return true
	case <-e.quit:
		return false
	}
}

// Register adds or replaces a candidate. Re-registering an observable
// with a different predicted value while a request is in flight
// cancels the stale prediction without penalty (latest wins).
func (e *Engine) Register(c Candidate) {
	e.send(registerCmd{c: c})
}

// Remove drops a candidate, cancelling any in-flight prediction. Used
// when the owning view is torn down.
func (e *Engine) Remove(id string) {
	e.send(removeCmd{id: id})
}

// PointerMove feeds a pointer position sample.
func (e *Engine) PointerMove(x, y float64, at time.Time) {
	e.send(pointerCmd{s: PointerSample{X: x, Y: y, At: at}})
}

// ScrollTo feeds a scroll offset sample.
func (e *Engine) ScrollTo(offset float64, at time.Time) {
	e.send(scrollCmd{s: ScrollSample{Offset: offset, At: at}})
}

// Deliver hands a forecast response to the engine.
func (e *Engine) Deliver(resp *protocol.ForecastResponse) {
	e.send(deliverCmd{resp: resp})
}

// Observe reports an actual observation. It returns true when a cached
// prediction matched and its patches were applied.
func (e *Engine) Observe(id, value string) bool {
	applied := make(chan bool, 1)
	if !e.send(observeCmd{id: id, value: value, applied: applied}) {
		return false
	}
	select {
	case a := <-applied:
		return a
	case <-e.quit:
		return false
	}
}

// PhaseOf returns an observable's current phase. Unknown observables
// report PhaseIdle.
func (e *Engine) PhaseOf(id string) Phase {
	reply := make(chan Phase, 1)
	if !e.send(phaseCmd{id: id, reply: reply}) {
		return PhaseIdle
	}
	select {
	case p := <-reply:
		return p
	case <-e.quit:
		return PhaseIdle
	}
}

// engineState is the run goroutine's private world.
type engineState struct {
	pointer     *sampleRing
	scroll      *scrollRing
	observables map[string]*observable
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	st := &engineState{
		pointer:     newSampleRing(e.cfg.WindowSize),
		scroll:      newScrollRing(e.cfg.WindowSize),
		observables: make(map[string]*observable),
	}

	for {
		select {
		case <-e.quit:
			return
		case cmd := <-e.cmds:
			e.handle(st, cmd)
		case now := <-ticker.C:
			e.sweep(st, now)
			e.evaluate(st, now)
		}
	}
}

func (e *Engine) handle(st *engineState, cmd any) {
	switch c := cmd.(type) {
	case registerCmd:
		if prior, ok := st.observables[c.c.ID]; ok {
			if prior.phase == PhaseRequested && prior.candidate.PredictedValue != c.c.PredictedValue {
				e.cache.Discard(c.c.ID)
				prior.phase = PhaseIdle
			}
			prior.candidate = c.c
		} else {
			st.observables[c.c.ID] = &observable{candidate: c.c}
		}
		e.evaluate(st, time.Now())

	case removeCmd:
		delete(st.observables, c.id)
		e.cache.Discard(c.id)

	case pointerCmd:
		st.pointer.Push(c.s)
		e.evaluate(st, c.s.At)

	case scrollCmd:
		st.scroll.Push(c.s)
		e.evaluate(st, c.s.At)

	case deliverCmd:
		o, ok := st.observables[c.resp.ObservableID]
		if !ok || o.phase != PhaseRequested {
			return
		}
		if c.resp.Hit {
			e.cache.Put(o.candidate.ID, o.candidate.PredictedValue, c.resp.Patches, c.resp.Confidence)
		} else {
			// Server had nothing above the floor; nothing to hold for.
			o.phase = PhaseIdle
		}

	case observeCmd:
		c.applied <- e.resolve(st, c.id, c.value)

	case phaseCmd:
		if o, ok := st.observables[c.id]; ok {
			c.reply <- o.phase
		} else {
			c.reply <- PhaseIdle
		}
	}
}

// resolve consumes a cached prediction on an actual observation.
func (e *Engine) resolve(st *engineState, id, value string) bool {
	o, ok := st.observables[id]
	if !ok {
		return false
	}

	if entry := e.cache.Take(id, value); entry != nil && o.phase == PhaseRequested {
		if e.apply != nil {
			e.apply(id, entry.Patches)
		}
		o.phase = PhaseResolved
		return true
	}

	// Mismatch or nothing cached: drop whatever was pending.
	e.cache.Discard(id)
	if o.phase == PhaseArmed || o.phase == PhaseRequested {
		o.phase = PhaseIdle
	}
	return false
}

// sweep times out stale requests: leadTime*1.5 without a resolving
// observation returns the observable to Idle and drops its cache entry.
func (e *Engine) sweep(st *engineState, now time.Time) {
	timeout := e.cfg.LeadTime * 3 / 2
	for id, o := range st.observables {
		if o.phase == PhaseRequested && now.Sub(o.requestedAt) > timeout {
			e.cache.Discard(id)
			o.phase = PhaseIdle
			e.log.Debug("prediction timed out", "observable", id)
		}
	}
	e.cache.Sweep(now)
}

// evaluate recomputes confidence for every armable observable and
// fires requests for those crossing the threshold. Candidates above
// the piggyback threshold pull up to two related armable candidates
// into the same request batch.
func (e *Engine) evaluate(st *engineState, now time.Time) {
	for _, o := range st.observables {
		if !o.armable() {
			continue
		}
		conf := e.confidence(st, o)
		o.confidence = conf
		if conf < e.cfg.ArmThreshold {
			continue
		}

		o.phase = PhaseArmed
		reqs := []*protocol.ForecastRequest{requestFor(o)}
		o.phase = PhaseRequested
		o.requestedAt = now

		if conf >= e.cfg.PiggybackThreshold {
			added := 0
			for _, rid := range o.candidate.Related {
				if added == 2 {
					break
				}
				ro, ok := st.observables[rid]
				if !ok || !ro.armable() {
					continue
				}
				ro.phase = PhaseArmed
				reqs = append(reqs, requestFor(ro))
				ro.phase = PhaseRequested
				ro.requestedAt = now
				added++
			}
		}

		e.req.RequestForecasts(reqs)
	}
}

func (e *Engine) confidence(st *engineState, o *observable) float64 {
	switch o.candidate.Kind {
	case KindVisibility:
		return VisibilityConfidence(st.scroll, o.candidate.Top, e.cfg.ViewportHeight, e.cfg.LeadTime)
	case KindFocus:
		return FocusConfidence(o.candidate.NextInTabOrder)
	default:
		return HoverConfidence(st.pointer, o.candidate.Box, e.cfg.LeadTime)
	}
}

func requestFor(o *observable) *protocol.ForecastRequest {
	return &protocol.ForecastRequest{
		Signature:      o.candidate.Signature,
		ObservableID:   o.candidate.ID,
		PredictedValue: o.candidate.PredictedValue,
	}
}
