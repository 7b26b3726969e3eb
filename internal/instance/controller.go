// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/gamepanel/internal/terminal"
	"github.com/wingedpig/gamepanel/internal/watcher"
)

// Options configures a Controller.
type Options struct {
	Terminal terminal.Service
	Resolver *Resolver
	Store    Store         // nil disables persistence
	FS       afero.Fs      // defaults to the OS filesystem
	Platform string        // defaults to runtime.GOOS
	Timings  Timings
	// FlushDelay is the minimum delay between a change and its write to
	// the store.
	FlushDelay time.Duration
	Cols       int
	Rows       int
}

// Controller owns the instance registry and drives every status transition.
type Controller struct {
	term     terminal.Service
	resolver *Resolver
	store    Store
	fs       afero.Fs
	platform string
	timings  Timings
	cols     int
	rows     int
	flusher  *watcher.Flusher

	mu        sync.Mutex
	instances map[string]*managedInstance
	order     []string

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

type managedInstance struct {
	rec       Record
	status    Status
	sessionID string
	pid       int
	bridge    *bridge
	watchdog  *time.Timer
	// gen changes whenever a start attempt is claimed or abandoned, so a
	// start that lost its claim does not overwrite newer state.
	gen uint64
}

var _ Manager = (*Controller)(nil)

// NewController creates a controller and loads the stored records. Every
// loaded instance starts out stopped.
func NewController(opts Options) (*Controller, error) {
	if opts.Terminal == nil {
		return nil, fmt.Errorf("terminal service is required")
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Platform == "" {
		opts.Platform = runtime.GOOS
	}
	if opts.Resolver == nil {
		opts.Resolver = NewResolver(opts.FS, opts.Platform, nil)
	}

	c := &Controller{
		term:      opts.Terminal,
		resolver:  opts.Resolver,
		store:     opts.Store,
		fs:        opts.FS,
		platform:  opts.Platform,
		timings:   opts.Timings.withDefaults(),
		cols:      opts.Cols,
		rows:      opts.Rows,
		instances: make(map[string]*managedInstance),
		observers: make(map[int]Observer),
	}

	if c.store != nil {
		records, err := c.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load instances: %w", err)
		}
		for _, rec := range records {
			if rec.ID == "" {
				continue
			}
			if _, dup := c.instances[rec.ID]; dup {
				log.Printf("Instance %s: duplicate record ignored", rec.ID)
				continue
			}
			c.instances[rec.ID] = &managedInstance{rec: rec, status: StatusStopped}
			c.order = append(c.order, rec.ID)
		}
		c.flusher = watcher.NewFlusher(opts.FlushDelay, c.save)
		log.Printf("Loaded %d instance(s)", len(c.order))
	}

	return c, nil
}

// save writes a snapshot of every record to the store.
func (c *Controller) save() error {
	return c.store.Save(c.Records())
}

func (c *Controller) markDirty() {
	if c.flusher != nil {
		c.flusher.MarkDirty()
	}
}

// Flush writes pending changes to the store immediately.
func (c *Controller) Flush() error {
	if c.flusher == nil {
		return nil
	}
	return c.flusher.Flush()
}

// Close flushes pending changes and stops scheduling writes. Running
// sessions are left alone; use StopAll first.
func (c *Controller) Close() error {
	if c.flusher == nil {
		return nil
	}
	return c.flusher.Stop()
}

// Records returns the configuration of every instance in stored order.
func (c *Controller) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.instances[id].rec)
	}
	return out
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(o Observer) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Controller) notify(fn func(Observer)) {
	c.obsMu.RLock()
	obs := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		obs = append(obs, o)
	}
	c.obsMu.RUnlock()
	for _, o := range obs {
		fn(o)
	}
}

func (c *Controller) emitStatus(id string, status Status) {
	c.notify(func(o Observer) { o.StatusChanged(id, status) })
}

func (m *managedInstance) snapshot() Instance {
	return Instance{
		Record:    m.rec,
		Status:    m.status,
		SessionID: m.sessionID,
		PID:       m.pid,
	}
}

// Get returns one instance.
func (c *Controller) Get(id string) (Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.instances[id]
	if !ok {
		return Instance{}, notFound("get", id)
	}
	return m.snapshot(), nil
}

// List returns all instances in stored order.
func (c *Controller) List() []Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Instance, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.instances[id].snapshot())
	}
	return out
}

// Status returns the current status of an instance.
func (c *Controller) Status(id string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.instances[id]
	if !ok {
		return StatusStopped, notFound("status", id)
	}
	return m.status, nil
}

// normalize fills in defaults and checks the configuration fields.
func normalize(op string, rec *Record) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.StopCommand == "" {
		rec.StopCommand = StopCtrlC
	}
	if rec.Type == "" {
		rec.Type = TypeGeneric
	}

	var problems []string
	if rec.Name == "" {
		problems = append(problems, "name is required")
	}
	if rec.WorkingDirectory == "" {
		problems = append(problems, "working directory is required")
	} else if !filepath.IsAbs(rec.WorkingDirectory) {
		problems = append(problems, fmt.Sprintf("working directory %q must be an absolute path", rec.WorkingDirectory))
	}
	if !rec.StopCommand.Valid() {
		problems = append(problems, fmt.Sprintf("stop command %q must be one of: ctrl+c, stop, exit, quit", rec.StopCommand))
	}
	if !rec.Type.Valid() {
		problems = append(problems, fmt.Sprintf("type %q must be one of: generic, minecraft-java, minecraft-bedrock", rec.Type))
	}
	if rec.Cols < 0 || rec.Rows < 0 {
		problems = append(problems, "terminal size must not be negative")
	}
	if rec.ForwardMode && rec.Type == TypeGeneric && rec.ProgramPath == "" && rec.StartCommand == "" {
		problems = append(problems, "forward mode needs a program path or start command")
	}

	if len(problems) > 0 {
		return newError(KindValidation, op, rec.ID, "%s", strings.Join(problems, "\n"))
	}
	return nil
}

// Create adds a new stopped instance.
func (c *Controller) Create(ctx context.Context, rec Record) (Instance, error) {
	rec.ID = uuid.New().String()
	rec.CreatedAt = now()
	rec.LastStarted = time.Time{}
	rec.LastStopped = time.Time{}
	if err := normalize("create", &rec); err != nil {
		return Instance{}, err
	}

	m := &managedInstance{rec: rec, status: StatusStopped}
	c.mu.Lock()
	c.instances[rec.ID] = m
	c.order = append(c.order, rec.ID)
	inst := m.snapshot()
	c.mu.Unlock()

	log.Printf("Instance %s: created %q", rec.ID, rec.Name)
	c.markDirty()
	c.notify(func(o Observer) { o.InstanceCreated(inst) })
	return inst, nil
}

// Update replaces the configuration of an instance. The instance must not
// be starting, running or stopping.
func (c *Controller) Update(ctx context.Context, id string, rec Record) (Instance, error) {
	c.mu.Lock()
	m, ok := c.instances[id]
	if !ok {
		c.mu.Unlock()
		return Instance{}, notFound("update", id)
	}
	if busy(m.status) {
		status := m.status
		c.mu.Unlock()
		return Instance{}, newError(KindConcurrency, "update", id, "instance is %s; stop it before changing its configuration", status)
	}

	rec.ID = id
	rec.CreatedAt = m.rec.CreatedAt
	rec.LastStarted = m.rec.LastStarted
	rec.LastStopped = m.rec.LastStopped
	if err := normalize("update", &rec); err != nil {
		c.mu.Unlock()
		return Instance{}, err
	}
	m.rec = rec
	inst := m.snapshot()
	c.mu.Unlock()

	c.markDirty()
	c.notify(func(o Observer) { o.InstanceUpdated(inst) })
	return inst, nil
}

// Delete removes an instance, stopping it first if it is running.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	m, ok := c.instances[id]
	if !ok {
		c.mu.Unlock()
		return notFound("delete", id)
	}
	status := m.status
	c.mu.Unlock()

	switch status {
	case StatusStarting:
		return newError(KindConcurrency, "delete", id, "instance is starting")
	case StatusRunning:
		if err := c.Stop(ctx, id); err != nil && !IsKind(err, KindResource) && !IsKind(err, KindConcurrency) {
			return err
		}
		fallthrough
	case StatusStopping:
		if err := c.waitWhileStopping(ctx, id); err != nil {
			return err
		}
	}

	c.mu.Lock()
	m, ok = c.instances[id]
	if !ok {
		c.mu.Unlock()
		return notFound("delete", id)
	}
	if busy(m.status) {
		status = m.status
		c.mu.Unlock()
		return newError(KindConcurrency, "delete", id, "instance is %s", status)
	}
	b := m.bridge
	c.resetLocked(m, m.status)
	delete(c.instances, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if b != nil {
		b.close()
	}
	log.Printf("Instance %s: deleted", id)
	c.markDirty()
	c.notify(func(o Observer) { o.InstanceDeleted(id) })
	return nil
}

func busy(s Status) bool {
	return s == StatusStarting || s == StatusRunning || s == StatusStopping
}

// Start launches an instance. It returns once the start command has been
// sent and the instance is running, or with an error after which the
// instance is in the error status.
func (c *Controller) Start(ctx context.Context, id string) error {
	c.mu.Lock()
	m, ok := c.instances[id]
	if !ok {
		c.mu.Unlock()
		return notFound("start", id)
	}
	if m.status != StatusStopped && m.status != StatusError {
		status := m.status
		c.mu.Unlock()
		return newError(KindConcurrency, "start", id, "instance is already %s", status)
	}
	m.status = StatusStarting
	m.gen++
	gen := m.gen
	rec := m.rec
	c.mu.Unlock()

	c.emitStatus(id, StatusStarting)
	log.Printf("Instance %s: starting", id)

	exists, err := dirExists(c.fs, rec.WorkingDirectory)
	if err != nil {
		return c.abortStart(id, gen, nil, wrapError(KindValidation, "start", id, err, "cannot access working directory %s", rec.WorkingDirectory))
	}
	if !exists {
		return c.abortStart(id, gen, nil, newError(KindValidation, "start", id, "working directory %s does not exist", rec.WorkingDirectory))
	}

	command, err := c.resolver.Resolve(rec)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Op = "start"
		}
		return c.abortStart(id, gen, nil, err)
	}
	if c.platform != "windows" {
		if script := scriptPath(rec.WorkingDirectory, command); script != "" {
			if err := c.fs.Chmod(script, 0755); err != nil {
				log.Printf("Instance %s: chmod %s: %v", id, script, err)
			}
		}
	}

	b := newBridge(c, id)
	c.mu.Lock()
	if m.gen != gen || m.status != StatusStarting {
		c.mu.Unlock()
		return newError(KindConcurrency, "start", id, "start was interrupted")
	}
	m.bridge = b
	c.mu.Unlock()

	cols, rows := rec.Cols, rec.Rows
	if cols <= 0 {
		cols = c.cols
	}
	if rows <= 0 {
		rows = c.rows
	}
	sess, err := c.term.Open(ctx, terminal.OpenOptions{
		SessionID:        b.sessionID,
		Name:             rec.Name,
		Cols:             cols,
		Rows:             rows,
		WorkingDirectory: rec.WorkingDirectory,
		ForwardMode:      rec.ForwardMode,
		ProgramPath:      rec.ProgramPath,
		Command:          command,
		RunAsUser:        rec.RunAsUser,
	}, b)
	if err != nil {
		return c.abortStart(id, gen, nil, wrapError(KindResource, "start", id, err, "open terminal session"))
	}

	c.mu.Lock()
	if !c.ownsStartLocked(m, gen, b) {
		c.mu.Unlock()
		return c.interruptedStart(id, b)
	}
	m.pid = sess.PID
	c.mu.Unlock()

	timer := time.NewTimer(c.timings.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-b.ready:
	case <-b.done:
		return c.abortStart(id, gen, b, wrapError(KindResource, "start", id, b.failure(), "terminal session ended before it was ready"))
	case <-timer.C:
		return c.abortStart(id, gen, b, newError(KindResource, "start", id, "terminal session not ready after %s", c.timings.ReadyTimeout))
	case <-ctx.Done():
		return c.abortStart(id, gen, b, wrapError(KindResource, "start", id, ctx.Err(), "waiting for terminal session"))
	}

	if c.timings.SettleDelay > 0 {
		settle := time.NewTimer(c.timings.SettleDelay)
		select {
		case <-settle.C:
		case <-b.done:
			settle.Stop()
			return c.abortStart(id, gen, b, wrapError(KindResource, "start", id, b.failure(), "terminal session ended during startup"))
		case <-ctx.Done():
			settle.Stop()
			return c.abortStart(id, gen, b, wrapError(KindResource, "start", id, ctx.Err(), "waiting for terminal session"))
		}
	}

	c.mu.Lock()
	owned := c.ownsStartLocked(m, gen, b)
	c.mu.Unlock()
	if !owned {
		return c.interruptedStart(id, b)
	}

	if !rec.ForwardMode {
		if err := b.write([]byte(command + lineTerminator)); err != nil {
			return c.abortStart(id, gen, b, wrapError(KindResource, "start", id, err, "send start command"))
		}
	}

	c.mu.Lock()
	if !c.ownsStartLocked(m, gen, b) {
		c.mu.Unlock()
		return c.interruptedStart(id, b)
	}
	if b.exited() {
		c.mu.Unlock()
		return c.abortStart(id, gen, b, wrapError(KindResource, "start", id, b.failure(), "terminal session ended during startup"))
	}
	m.status = StatusRunning
	m.sessionID = b.sessionID
	m.rec.LastStarted = now()
	pid := m.pid
	c.mu.Unlock()

	log.Printf("Instance %s: running (PID %d): %s", id, pid, command)
	c.markDirty()
	c.emitStatus(id, StatusRunning)
	return nil
}

// ownsStartLocked reports whether the start attempt identified by gen and b
// still holds the instance. c.mu must be held.
func (c *Controller) ownsStartLocked(m *managedInstance, gen uint64, b *bridge) bool {
	return m.gen == gen && m.status == StatusStarting && m.bridge == b
}

// interruptedStart tears down the session of a start attempt that was
// superseded, typically by CloseTerminal.
func (c *Controller) interruptedStart(id string, b *bridge) error {
	b.release()
	log.Printf("Instance %s: start interrupted, session %s closed", id, b.sessionID)
	return newError(KindConcurrency, "start", id, "start was interrupted")
}

// abortStart moves a start attempt that still owns the instance to the
// error status. Any session it opened is closed, owned or not.
func (c *Controller) abortStart(id string, gen uint64, b *bridge, err error) error {
	if b != nil {
		b.release()
	}

	c.mu.Lock()
	changed := false
	if m, ok := c.instances[id]; ok && m.gen == gen && m.status == StatusStarting {
		c.resetLocked(m, StatusError)
		changed = true
	}
	c.mu.Unlock()

	if changed {
		log.Printf("Instance %s: start failed: %v", id, err)
		c.emitStatus(id, StatusError)
	}
	return err
}

// resetLocked clears the runtime session state and sets status. c.mu must
// be held.
func (c *Controller) resetLocked(m *managedInstance, status Status) {
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
	m.bridge = nil
	m.sessionID = ""
	m.pid = 0
	if status == StatusStopped && m.status != StatusStopped {
		m.rec.LastStopped = now()
	}
	m.status = status
}

// Stop asks a running instance to exit using its stop command. If the
// process has not exited within the stop timeout its session is closed.
func (c *Controller) Stop(ctx context.Context, id string) error {
	c.mu.Lock()
	m, ok := c.instances[id]
	if !ok {
		c.mu.Unlock()
		return notFound("stop", id)
	}
	if m.status != StatusRunning {
		status := m.status
		c.mu.Unlock()
		return newError(KindConcurrency, "stop", id, "instance is %s", status)
	}
	if m.sessionID == "" || m.bridge == nil {
		c.mu.Unlock()
		return newError(KindConcurrency, "stop", id, "instance has no terminal session")
	}
	m.status = StatusStopping
	b := m.bridge
	stopCmd := m.rec.StopCommand
	m.watchdog = time.AfterFunc(c.timings.StopTimeout, func() {
		c.stopWatchdog(id, b)
	})
	c.mu.Unlock()

	log.Printf("Instance %s: stopping (%s)", id, stopCmd)
	c.emitStatus(id, StatusStopping)

	if err := b.write(stopCmd.Payload()); err != nil {
		// The watchdog still closes the session.
		return wrapError(KindResource, "stop", id, err, "send stop command")
	}
	return nil
}

func (c *Controller) stopWatchdog(id string, b *bridge) {
	c.mu.Lock()
	m, ok := c.instances[id]
	if !ok || m.status != StatusStopping || m.bridge != b {
		c.mu.Unlock()
		return
	}
	c.resetLocked(m, StatusStopped)
	c.mu.Unlock()

	log.Printf("Instance %s: did not exit within %s, closing session", id, c.timings.StopTimeout)
	b.close()
	c.markDirty()
	c.emitStatus(id, StatusStopped)
}

// handleExit runs when an instance's process exits.
func (c *Controller) handleExit(b *bridge, code int) {
	c.mu.Lock()
	m, ok := c.instances[b.instanceID]
	if !ok || m.bridge != b {
		c.mu.Unlock()
		return
	}
	switch m.status {
	case StatusRunning, StatusStopping:
		c.resetLocked(m, StatusStopped)
	default:
		// A starting instance notices the exit itself.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	log.Printf("Instance %s: exited with code %d", b.instanceID, code)
	c.markDirty()
	c.emitStatus(b.instanceID, StatusStopped)
}

// handleSessionError runs when the terminal service reports a failure.
func (c *Controller) handleSessionError(b *bridge, err error) {
	c.mu.Lock()
	m, ok := c.instances[b.instanceID]
	if !ok || m.bridge != b || m.status == StatusStarting {
		c.mu.Unlock()
		return
	}
	c.resetLocked(m, StatusError)
	c.mu.Unlock()

	log.Printf("Instance %s: terminal session failed: %v", b.instanceID, err)
	b.close()
	c.emitStatus(b.instanceID, StatusError)
}

func (c *Controller) relayOutput(b *bridge, data []byte) {
	c.mu.Lock()
	m, ok := c.instances[b.instanceID]
	current := ok && m.bridge == b
	c.mu.Unlock()
	if !current {
		return
	}
	c.notify(func(o Observer) { o.Output(b.instanceID, data) })
}

// Restart stops a running instance, waits for it to leave stopping plus
// the restart settle delay, then starts it. Instances that are not
// running are started directly.
func (c *Controller) Restart(ctx context.Context, id string) error {
	status, err := c.Status(id)
	if err != nil {
		return err
	}

	if status == StatusRunning {
		if err := c.Stop(ctx, id); err != nil && !IsKind(err, KindResource) {
			return err
		}
		if err := c.waitWhileStopping(ctx, id); err != nil {
			return err
		}
		if c.timings.RestartSettle > 0 {
			select {
			case <-time.After(c.timings.RestartSettle):
			case <-ctx.Done():
				return wrapError(KindResource, "restart", id, ctx.Err(), "waiting to restart")
			}
		}
	}

	return c.Start(ctx, id)
}

// waitWhileStopping polls until the instance is no longer stopping.
func (c *Controller) waitWhileStopping(ctx context.Context, id string) error {
	ticker := time.NewTicker(c.timings.RestartPoll)
	defer ticker.Stop()
	for {
		status, err := c.Status(id)
		if err != nil {
			return err
		}
		if status != StatusStopping {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return wrapError(KindResource, "stop", id, ctx.Err(), "waiting for instance to stop")
		}
	}
}

// CloseTerminal closes the instance's session whatever its status and
// resets it to stopped.
func (c *Controller) CloseTerminal(ctx context.Context, id string) error {
	c.mu.Lock()
	m, ok := c.instances[id]
	if !ok {
		c.mu.Unlock()
		return notFound("close", id)
	}
	b := m.bridge
	prev := m.status
	m.gen++
	c.resetLocked(m, StatusStopped)
	c.mu.Unlock()

	if b != nil {
		b.close()
	} else if err := c.term.Close(SessionID(id)); err == nil {
		log.Printf("Instance %s: closed orphaned session", id)
	}

	if prev != StatusStopped {
		log.Printf("Instance %s: terminal closed (was %s)", id, prev)
		c.markDirty()
		c.emitStatus(id, StatusStopped)
	}
	return nil
}

// SendInput writes raw bytes to a running instance's session.
func (c *Controller) SendInput(ctx context.Context, id string, data []byte) error {
	b, err := c.runningBridge("input", id)
	if err != nil {
		return err
	}
	if err := b.write(data); err != nil {
		return wrapError(KindResource, "input", id, err, "write to terminal session")
	}
	return nil
}

// Resize changes the terminal size of a running instance.
func (c *Controller) Resize(ctx context.Context, id string, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return newError(KindValidation, "resize", id, "invalid terminal size %dx%d", cols, rows)
	}
	b, err := c.runningBridge("resize", id)
	if err != nil {
		return err
	}
	if err := c.term.Resize(b.sessionID, cols, rows); err != nil {
		return wrapError(KindResource, "resize", id, err, "resize terminal session")
	}
	return nil
}

func (c *Controller) runningBridge(op, id string) (*bridge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.instances[id]
	if !ok {
		return nil, notFound(op, id)
	}
	if m.status != StatusRunning || m.bridge == nil {
		return nil, newError(KindConcurrency, op, id, "instance is %s", m.status)
	}
	return m.bridge, nil
}

// StopAll stops every running instance in parallel and waits until none
// of them is stopping.
func (c *Controller) StopAll(ctx context.Context) error {
	c.mu.Lock()
	var ids []string
	for _, id := range c.order {
		if m := c.instances[id]; m.status == StatusRunning || m.status == StatusStopping {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := c.Stop(ctx, id); err != nil && !IsKind(err, KindConcurrency) && !IsKind(err, KindResource) {
				return err
			}
			return c.waitWhileStopping(ctx, id)
		})
	}
	return g.Wait()
}

func now() time.Time {
	return time.Now().UTC().Round(0)
}
