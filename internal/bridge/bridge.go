package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
	"github.com/nerrad567/ble-adv-core/internal/discovery"
	"github.com/nerrad567/ble-adv-core/internal/entity"
	"github.com/nerrad567/ble-adv-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ble-adv-core/internal/mirror"
	"github.com/nerrad567/ble-adv-core/internal/transport"
)

// Bridge operation constants.
const (
	// minTopicParts is the number of parts in a valid command topic.
	minTopicParts = 4

	// commandTimeout bounds how long a command waits for its queue result.
	commandTimeout = 30 * time.Second

	// activitySampleInterval is how often per-codec frame counts flush to
	// the state history.
	activitySampleInterval = time.Minute

	// defaultDiscoveryBudget applies when a start message carries none.
	defaultDiscoveryBudget = 20 * time.Second
)

// Bridge orchestrates bidirectional translation between the radio and MQTT.
// It handles:
//   - Receiving entity commands via MQTT, encoding them and queueing
//     transmissions
//   - Feeding received advertisements to the mirror, the discovery engine
//     and the traffic recorder
//   - Publishing mirrored state changes and discovery outcomes to MQTT
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	reg       *codecs.Registry
	counters  *codecs.CounterStore
	queue     *transport.Queue
	mir       *mirror.Mirror
	engine    *discovery.Engine
	validator *discovery.Validator
	recorder  TrafficRecorder
	history   StateHistory
	qos       byte
	topics    mqtt.Topics

	// Device mappings (built from config)
	devices    map[string]*deviceState
	byIdentity map[codecs.Identity]*deviceState

	// Last published state per entity, for change echo and refresh-on-start
	stateCache map[entityKey]StateMessage
	stateMu    sync.RWMutex

	// refreshed marks entities whose refresh-on-start has already fired
	refreshed   map[entityKey]bool
	refreshedMu sync.Mutex

	// activity accumulates per-codec frame counts between history flushes
	activity   map[string]int
	activityMu sync.Mutex

	// Discovery session coordination
	discMu         sync.Mutex
	discCancel     context.CancelFunc
	lastCandidates []discovery.Candidate

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// entityKey addresses one logical entity across the bridge's caches.
type entityKey struct {
	device string
	index  int
}

// deviceState is the per-device wiring built from config at construction.
type deviceState struct {
	dev      Device
	codec    *codecs.Codec
	identity codecs.Identity
	entities map[int]entity.Config
}

// slotFor finds the configured entity slot of the given type, if any.
func (ds *deviceState) slotFor(t entity.Type) (int, bool) {
	for idx, ent := range ds.entities {
		if ent.Type == t {
			return idx, true
		}
	}
	return 0, false
}

// Device describes one configured physical device the bridge controls.
type Device struct {
	// Name is the stable identifier used in MQTT topics.
	Name string

	// Codec is the codec identifier chosen during validation.
	Codec string

	// ID is the forced id addressing the device.
	ID uint32

	// Index is the device's sub index.
	Index uint8

	Entities []entity.Config
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// TrafficRecorder persists decoded identities and unknown raw traffic for
// diagnostics. Optional - if nil, the bridge operates without recording.
type TrafficRecorder interface {
	RecordDecoded(id codecs.Identity, cmd codecs.Command, at time.Time)
	RecordUnknown(raw []byte, bleType byte, at time.Time)
}

// StateHistory receives mirrored state changes and radio activity samples
// as time-series points. Optional - if nil, the bridge operates without
// state history.
type StateHistory interface {
	WriteLightState(device string, entityIndex int, on bool, brightness int)
	WriteFanState(device string, entityIndex int, on bool, speed int)
	WriteRadioActivity(codecID string, count int)
}

// Logger defines the logging interface for the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Devices is the configured device inventory.
	Devices []Device

	// MQTT is the MQTT client implementation.
	MQTT MQTTClient

	// Registry is the codec registry.
	Registry *codecs.Registry

	// Counters is the per-identity session store shared with the mirror.
	Counters *codecs.CounterStore

	// Queue is the running transmit queue.
	Queue *transport.Queue

	// Recorder is optional traffic recording for diagnostics.
	Recorder TrafficRecorder

	// History is optional time-series state history.
	History StateHistory

	// ValidationTimeout is how long each blink waits for operator
	// confirmation. Zero uses the validator's default.
	ValidationTimeout time.Duration

	// QoS applies to every publish and subscription.
	QoS byte

	// Logger is optional structured logging.
	Logger Logger
}

// New creates a bridge instance. Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("bridge: codec registry is required")
	}
	if opts.Counters == nil {
		return nil, fmt.Errorf("bridge: counter store is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("bridge: transmit queue is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:       opts.MQTT,
		reg:        opts.Registry,
		counters:   opts.Counters,
		queue:      opts.Queue,
		recorder:   opts.Recorder,
		history:    opts.History,
		qos:        opts.QoS,
		devices:    make(map[string]*deviceState),
		byIdentity: make(map[codecs.Identity]*deviceState),
		stateCache: make(map[entityKey]StateMessage),
		refreshed:  make(map[entityKey]bool),
		activity:   make(map[string]int),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     opts.Logger,
	}

	for _, dev := range opts.Devices {
		codec, err := opts.Registry.Find(dev.Codec)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("bridge: device %q: %w", dev.Name, err)
		}
		id := codecs.Identity{CodecID: codec.ID(), ID: dev.ID, Index: dev.Index}
		if _, dup := b.byIdentity[id]; dup {
			cancel()
			return nil, fmt.Errorf("bridge: device %q duplicates identity %s", dev.Name, id)
		}
		ds := &deviceState{
			dev:      dev,
			codec:    codec,
			identity: id,
			entities: make(map[int]entity.Config, len(dev.Entities)),
		}
		for _, ent := range dev.Entities {
			if err := ent.Validate(); err != nil {
				cancel()
				return nil, fmt.Errorf("bridge: device %q: %w", dev.Name, err)
			}
			if _, dup := ds.entities[ent.Index]; dup {
				cancel()
				return nil, fmt.Errorf("bridge: device %q: entities share index %d", dev.Name, ent.Index)
			}
			ds.entities[ent.Index] = ent
		}
		b.devices[dev.Name] = ds
		b.byIdentity[id] = ds
	}

	b.mir = mirror.New(opts.Registry, opts.Counters, mirror.SinkFunc(b.onStateChanged))
	b.engine = discovery.NewEngine(opts.Registry)
	b.validator = discovery.NewValidator(opts.Registry, opts.Counters, b.blink, opts.ValidationTimeout)
	if opts.Logger != nil {
		b.mir.SetLogger(opts.Logger)
		b.engine.SetLogger(opts.Logger)
		b.validator.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation: registers configured identities with the
// mirror and subscribes to the command, discovery and adapter topics.
func (b *Bridge) Start() error {
	for _, ds := range b.byIdentity {
		b.mir.Register(ds.identity)
	}

	commandTopic := b.topics.AllEntityCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	discoveryTopic := b.topics.DiscoveryCommand()
	if err := b.mqtt.Subscribe(discoveryTopic, b.qos, b.handleDiscoveryMessage); err != nil {
		return fmt.Errorf("subscribe to discovery: %w", err)
	}
	b.logInfo("subscribed to discovery", "topic", discoveryTopic)

	adapterTopic := b.topics.AllAdapterRx()
	if err := b.mqtt.Subscribe(adapterTopic, b.qos, b.handleAdapterFrame); err != nil {
		return fmt.Errorf("subscribe to adapters: %w", err)
	}
	b.logInfo("subscribed to adapters", "topic", adapterTopic)

	if err := b.subscribeRefreshOnStart(); err != nil {
		return fmt.Errorf("refresh-on-start: %w", err)
	}

	if b.history != nil {
		b.wg.Add(1)
		go b.sampleActivity()
	}

	b.logInfo("bridge started", "devices", len(b.devices))
	return nil
}

// Stop gracefully shuts down the bridge. In-flight command waits are
// cancelled; the transmit queue itself is owned by the caller.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.cancelDiscovery()
		b.ctxCancel()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// HandleFrame feeds one received advertisement buffer through the mirror,
// the discovery engine and the traffic recorder. It is the single ingress
// point for radio traffic.
func (b *Bridge) HandleFrame(raw []byte, received time.Time) {
	id, cmd, matched := b.mir.Process(raw, received)

	adv := codecs.ParseAdvertisement(raw, received)
	if len(adv.Raw) == 0 {
		return
	}

	// No-op unless a discovery window is open.
	b.engine.Observe(adv)

	codecID := "unknown"
	if matched {
		codecID = id.CodecID
	}
	if b.recorder != nil {
		switch {
		case matched:
			// The mirror already resolved a configured identity; recording
			// reuses that instead of re-scanning every codec.
			b.recorder.RecordDecoded(id, cmd, received)
		default:
			matches := b.reg.DecodeAll(adv)
			if len(matches) == 0 {
				b.recorder.RecordUnknown(adv.Raw, adv.BLEType, received)
				break
			}
			codecID = matches[0].Codec.ID()
			for _, m := range matches {
				b.recorder.RecordDecoded(m.Identity(), m.Cmd, received)
			}
		}
	}
	b.countActivity(codecID)
}

// countActivity tallies one received frame against a codec for the next
// history sample. No-op without a state history.
func (b *Bridge) countActivity(codecID string) {
	if b.history == nil {
		return
	}
	b.activityMu.Lock()
	b.activity[codecID]++
	b.activityMu.Unlock()
}

// sampleActivity flushes per-codec frame counts to the state history on a
// fixed interval, and once more on shutdown.
func (b *Bridge) sampleActivity() {
	defer b.wg.Done()
	ticker := time.NewTicker(activitySampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.flushActivity()
		case <-b.ctx.Done():
			b.flushActivity()
			return
		}
	}
}

func (b *Bridge) flushActivity() {
	b.activityMu.Lock()
	counts := b.activity
	b.activity = make(map[string]int)
	b.activityMu.Unlock()
	for codecID, n := range counts {
		b.history.WriteRadioActivity(codecID, n)
	}
}

// Mirror returns the bridge's synchronization mirror.
func (b *Bridge) Mirror() *mirror.Mirror {
	return b.mir
}

// handleAdapterFrame decodes a hex frame from a radio adapter's rx topic.
func (b *Bridge) handleAdapterFrame(topic string, payload []byte) error {
	raw, err := hex.DecodeString(strings.TrimSpace(string(payload)))
	if err != nil {
		b.logWarn("adapter frame is not hex", "topic", topic, "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	b.HandleFrame(raw, time.Now())
	return nil
}

// handleCommandMessage routes entity and device command topics.
// Topic shape: bleadv/command/{device}/{entity|device}.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logWarn("invalid command topic", "topic", topic)
		return nil
	}
	devName, suffix := parts[2], parts[3]

	ds, ok := b.devices[devName]
	if !ok {
		b.logWarn("command for unconfigured device", "device", devName)
		return nil
	}

	if suffix == "device" {
		b.handleDeviceCommand(ds, payload)
		return nil
	}

	entIdx, err := strconv.Atoi(suffix)
	if err != nil {
		b.logWarn("invalid entity index in topic", "topic", topic)
		return nil
	}
	b.handleEntityCommand(ds, entIdx, payload)
	return nil
}

// handleEntityCommand translates one entity command payload into a radio
// transmission and, on success, a retained state publish.
func (b *Bridge) handleEntityCommand(ds *deviceState, entIdx int, payload []byte) {
	ent, ok := ds.entities[entIdx]
	if !ok {
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:   "command_failed",
			Entity: entIdx,
			Error:  "entity not configured",
			At:     time.Now(),
		})
		return
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:   "command_failed",
			Entity: entIdx,
			Error:  fmt.Sprintf("parsing command: %v", err),
			At:     time.Now(),
		})
		return
	}

	cmd, err := b.commandFor(ds, ent, msg)
	if err != nil {
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:   "command_failed",
			Entity: entIdx,
			Error:  err.Error(),
			At:     time.Now(),
		})
		return
	}

	b.transmitAsync(ds, cmd, entIdx)
}

// commandFor maps a command payload onto the entity's single radio command.
func (b *Bridge) commandFor(ds *deviceState, ent entity.Config, msg CommandMessage) (codecs.Command, error) {
	if ent.IsFan() {
		return ent.FanCommand(entity.FanState{
			On:        msg.On,
			Speed:     msg.Speed,
			Forward:   msg.Forward,
			Oscillate: msg.Oscillate,
		})
	}

	st := entity.LightState{
		On:        msg.On,
		ColorTemp: msg.ColorTemp,
		Red:       msg.Red,
		Green:     msg.Green,
		Blue:      msg.Blue,
	}
	if msg.Brightness != nil {
		st.Brightness = *msg.Brightness
	} else if msg.On {
		// No brightness in the payload: hold the last published level,
		// full brightness when nothing is known yet.
		st.Brightness = b.lastBrightness(ds.dev.Name, ent.Index)
	}
	return ent.LightCommand(st)
}

// lastBrightness returns the cached brightness for an entity, 100 when none.
func (b *Bridge) lastBrightness(device string, entIdx int) uint8 {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if st, ok := b.stateCache[entityKey{device, entIdx}]; ok && st.Brightness != nil && *st.Brightness > 0 {
		return *st.Brightness
	}
	return 100
}

// handleDeviceCommand executes pair/unpair/blink/timer actions.
func (b *Bridge) handleDeviceCommand(ds *deviceState, payload []byte) {
	var msg DeviceCommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:  "command_failed",
			Error: fmt.Sprintf("parsing device command: %v", err),
			At:    time.Now(),
		})
		return
	}

	var cmd codecs.Command
	switch msg.Action {
	case "pair":
		cmd = codecs.PairRequest{}
	case "unpair":
		cmd = codecs.UnpairRequest{}
	case "blink":
		if ent, ok := ds.entities[msg.Entity]; ok {
			cmd = ent.BlinkCommand()
		} else {
			cmd = codecs.BlinkRequest{EntityIndex: msg.Entity}
		}
	case "timer":
		cmd = codecs.TimerRequest{Minutes: msg.Minutes}
	default:
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:  "command_failed",
			Error: fmt.Sprintf("unknown action: %s", msg.Action),
			At:    time.Now(),
		})
		return
	}

	b.transmitAsync(ds, cmd, msg.Entity)
}

// transmitAsync encodes and queues a command, then waits for the queue
// result in the background. Success publishes the commanded state; failure
// publishes a command_failed event.
func (b *Bridge) transmitAsync(ds *deviceState, cmd codecs.Command, entIdx int) {
	var (
		adv    codecs.Advertisement
		encErr error
	)
	b.counters.WithSession(ds.identity, func(s *codecs.Session) {
		adv, encErr = ds.codec.EncodeCommand(cmd, s)
	})
	if encErr != nil {
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:    "command_failed",
			Entity:  entIdx,
			Command: fmt.Sprintf("%v", cmd),
			Error:   encErr.Error(),
			At:      time.Now(),
		})
		return
	}

	raw := adv.Bytes()
	b.mir.NoteTransmitted(raw, time.Now())

	result := make(chan error, 1)
	req := transport.Request{
		QueueID: ds.dev.Name,
		Raw:     raw,
		Params:  transport.ParamsForCodec(ds.codec),
		Result:  result,
	}
	if err := b.queue.Enqueue(req); err != nil {
		b.publishEvent(ds.dev.Name, DeviceEventMessage{
			Type:   "command_failed",
			Entity: entIdx,
			Error:  err.Error(),
			At:     time.Now(),
		})
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		timer := time.NewTimer(commandTimeout)
		defer timer.Stop()
		select {
		case err := <-result:
			if err != nil {
				if errors.Is(err, transport.ErrSuperseded) {
					return
				}
				b.publishEvent(ds.dev.Name, DeviceEventMessage{
					Type:   "command_failed",
					Entity: entIdx,
					Error:  err.Error(),
					At:     time.Now(),
				})
				return
			}
			b.publishCommandOutcome(ds, cmd)
		case <-timer.C:
			b.logWarn("command result timed out", "device", ds.dev.Name)
		case <-b.ctx.Done():
		}
	}()
}

// publishCommandOutcome publishes the state a successful command implies.
// The mirror never sees our own bursts (own-echo suppression), so commanded
// state is published here rather than via the sink.
func (b *Bridge) publishCommandOutcome(ds *deviceState, cmd codecs.Command) {
	now := time.Now()
	if lc, ok := cmd.(codecs.LightCommand); ok {
		b.publishLightState(ds, lc, now)
		return
	}
	if msg, entIdx, ok := stateFromCommand(cmd, now); ok {
		b.publishState(ds, entIdx, msg)
		return
	}
	b.publishEvent(ds.dev.Name, DeviceEventMessage{
		Type:    "command_sent",
		Command: fmt.Sprintf("%v", cmd),
		At:      now,
	})
}

// onStateChanged is the mirror sink: a peer remote (or another host) changed
// device state and the change survived duplicate suppression and diffing.
func (b *Bridge) onStateChanged(ev mirror.Event) {
	ds, ok := b.byIdentity[ev.Identity]
	if !ok {
		return
	}
	if lc, ok := ev.Cmd.(codecs.LightCommand); ok {
		b.publishLightState(ds, lc, ev.Received)
		return
	}
	if msg, entIdx, ok := stateFromCommand(ev.Cmd, ev.Received); ok {
		b.publishState(ds, entIdx, msg)
		return
	}
	b.publishEvent(ds.dev.Name, DeviceEventMessage{
		Type:    "observed",
		Command: fmt.Sprintf("%v", ev.Cmd),
		At:      ev.Received,
	})
}

// publishLightState routes a light command onto entity state topics. Split
// cold/warm halves share the device's primary light on the wire, so a
// channel-level write publishes on the half's own slot, and a plain on/off
// on the shared wire index fans out to both halves.
func (b *Bridge) publishLightState(ds *deviceState, lc codecs.LightCommand, at time.Time) {
	coldSlot, hasCold := ds.slotFor(entity.TypeCold)
	warmSlot, hasWarm := ds.slotFor(entity.TypeWarm)

	if (lc.ChannelA != nil || lc.ChannelB != nil) && (hasCold || hasWarm) {
		if lc.ChannelA != nil && hasCold {
			b.publishState(ds, coldSlot, channelState(*lc.ChannelA, at))
		}
		if lc.ChannelB != nil && hasWarm {
			b.publishState(ds, warmSlot, channelState(*lc.ChannelB, at))
		}
		return
	}

	msg, entIdx, ok := stateFromCommand(lc, at)
	if !ok {
		return
	}
	if lc.ChannelA == nil && lc.ChannelB == nil && lc.Index == 0 && (hasCold || hasWarm) {
		if hasCold {
			b.publishState(ds, coldSlot, msg)
		}
		if hasWarm {
			b.publishState(ds, warmSlot, msg)
		}
		return
	}
	b.publishState(ds, entIdx, msg)
}

// publishState merges the change into the entity's cached state, publishes
// it retained and records history.
func (b *Bridge) publishState(ds *deviceState, entIdx int, msg StateMessage) {
	key := entityKey{ds.dev.Name, entIdx}

	b.stateMu.Lock()
	prev, ok := b.stateCache[key]
	if ok {
		msg = mergeState(prev, msg)
	}
	b.stateCache[key] = msg
	b.stateMu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	topic := b.topics.EntityState(ds.dev.Name, entIdx)
	if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
		b.logError("failed to publish state", err)
	}

	if b.history != nil {
		ent, known := ds.entities[entIdx]
		switch {
		case known && ent.IsFan():
			speed := -1
			if msg.Speed != nil {
				speed = int(*msg.Speed)
			}
			b.history.WriteFanState(ds.dev.Name, entIdx, msg.On, speed)
		default:
			brightness := -1
			if msg.Brightness != nil {
				brightness = int(*msg.Brightness)
			}
			b.history.WriteLightState(ds.dev.Name, entIdx, msg.On, brightness)
		}
	}
}

// mergeState folds a change onto the previous published state so aspects a
// command leaves out survive on the retained topic.
func mergeState(prev, next StateMessage) StateMessage {
	if next.Brightness == nil {
		next.Brightness = prev.Brightness
	}
	if next.ColorTemp == nil {
		next.ColorTemp = prev.ColorTemp
	}
	if next.Red == nil {
		next.Red = prev.Red
	}
	if next.Green == nil {
		next.Green = prev.Green
	}
	if next.Blue == nil {
		next.Blue = prev.Blue
	}
	if next.Speed == nil {
		next.Speed = prev.Speed
	}
	if next.Forward == nil {
		next.Forward = prev.Forward
	}
	if next.Oscillate == nil {
		next.Oscillate = prev.Oscillate
	}
	return next
}

// publishEvent publishes a device event message.
func (b *Bridge) publishEvent(device string, ev DeviceEventMessage) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logError("failed to marshal event", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.DeviceEvent(device), payload, b.qos, false); err != nil {
		b.logError("failed to publish event", err)
	}
	if ev.Type == "command_failed" {
		b.logWarn("command failed", "device", device, "error", ev.Error)
	}
}

// subscribeRefreshOnStart re-sends the retained state of entities configured
// with refresh_on_start, re-synchronising the device's rolling counter after
// a restart. The retained message on our own state topic is the last state
// the previous process knew.
func (b *Bridge) subscribeRefreshOnStart() error {
	for _, ds := range b.devices {
		for _, ent := range ds.entities {
			if !ent.RefreshOnStart {
				continue
			}
			ds, ent := ds, ent
			topic := b.topics.EntityState(ds.dev.Name, ent.Index)
			err := b.mqtt.Subscribe(topic, b.qos, func(_ string, payload []byte) error {
				b.refreshEntity(ds, ent, payload)
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// refreshEntity replays one retained state message as a fresh command.
// Fires at most once per entity per process lifetime.
func (b *Bridge) refreshEntity(ds *deviceState, ent entity.Config, payload []byte) {
	key := entityKey{ds.dev.Name, ent.Index}
	b.refreshedMu.Lock()
	if b.refreshed[key] {
		b.refreshedMu.Unlock()
		return
	}
	b.refreshed[key] = true
	b.refreshedMu.Unlock()

	var st StateMessage
	if err := json.Unmarshal(payload, &st); err != nil {
		b.logWarn("retained state unreadable, skipping refresh",
			"device", ds.dev.Name, "entity", ent.Index, "error", err)
		return
	}

	var (
		cmd codecs.Command
		err error
	)
	if ent.IsFan() {
		var speed uint8
		if st.Speed != nil {
			speed = *st.Speed
		}
		cmd, err = ent.FanCommand(entity.FanState{
			On:        st.On,
			Speed:     speed,
			Forward:   st.Forward,
			Oscillate: st.Oscillate,
		})
	} else {
		ls := entity.LightState{
			On:        st.On,
			ColorTemp: st.ColorTemp,
			Red:       st.Red,
			Green:     st.Green,
			Blue:      st.Blue,
		}
		if st.Brightness != nil {
			ls.Brightness = *st.Brightness
		} else if st.On {
			ls.Brightness = 100
		}
		cmd, err = ent.LightCommand(ls)
	}
	if err != nil {
		b.logWarn("refresh command rejected",
			"device", ds.dev.Name, "entity", ent.Index, "error", err)
		return
	}

	b.logInfo("refreshing entity state", "device", ds.dev.Name, "entity", ent.Index)
	b.transmitAsync(ds, cmd, ent.Index)
}

// handleDiscoveryMessage drives discovery sessions.
func (b *Bridge) handleDiscoveryMessage(_ string, payload []byte) error {
	var msg DiscoveryCommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "error",
			Error: fmt.Sprintf("parsing discovery command: %v", err),
			At:    time.Now(),
		})
		return nil
	}

	switch msg.Action {
	case "start":
		budget := defaultDiscoveryBudget
		if msg.BudgetSeconds > 0 {
			budget = time.Duration(msg.BudgetSeconds) * time.Second
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.runDiscovery(budget)
		}()
	case "validate":
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.runValidation(msg.Entity)
		}()
	case "confirm":
		b.validator.Confirm()
	case "cancel":
		b.cancelDiscovery()
	case "manual":
		id := codecs.Identity{CodecID: msg.Codec, ID: msg.ForcedID, Index: msg.Index}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.runManualValidation(id, msg.Entity)
		}()
	default:
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "error",
			Error: fmt.Sprintf("unknown action: %s", msg.Action),
			At:    time.Now(),
		})
	}
	return nil
}

// runDiscovery opens a listening window and publishes the ranked result.
func (b *Bridge) runDiscovery(budget time.Duration) {
	ctx, cancel := context.WithCancel(b.ctx)
	b.discMu.Lock()
	if b.discCancel != nil {
		b.discMu.Unlock()
		cancel()
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "error",
			Error: discovery.ErrBusy.Error(),
			At:    time.Now(),
		})
		return
	}
	b.discCancel = cancel
	b.discMu.Unlock()

	defer func() {
		b.discMu.Lock()
		b.discCancel = nil
		b.discMu.Unlock()
		cancel()
	}()

	b.logInfo("discovery window opened", "budget", budget)
	candidates, err := b.engine.Run(ctx, budget)
	switch {
	case errors.Is(err, discovery.ErrNoCandidates):
		b.publishDiscoveryEvent(DiscoveryEventMessage{Type: "timed_out", At: time.Now()})
		return
	case errors.Is(err, context.Canceled):
		b.publishDiscoveryEvent(DiscoveryEventMessage{Type: "cancelled", At: time.Now()})
		return
	case err != nil:
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "error",
			Error: err.Error(),
			At:    time.Now(),
		})
		return
	}

	b.discMu.Lock()
	b.lastCandidates = candidates
	b.discMu.Unlock()

	msgs := make([]CandidateMessage, len(candidates))
	for i, c := range candidates {
		msgs[i] = CandidateMessage{
			Codec:      c.Identity.CodecID,
			ForcedID:   c.Identity.ID,
			Index:      c.Identity.Index,
			Confidence: c.Confidence,
			PairSeen:   c.PairSeen,
			LastSeen:   c.LastSeen,
		}
	}
	b.publishDiscoveryEvent(DiscoveryEventMessage{
		Type:       "candidates",
		Candidates: msgs,
		At:         time.Now(),
	})
}

// runValidation blinks through the ranked candidates until the operator
// confirms one.
func (b *Bridge) runValidation(entityIndex int) {
	b.discMu.Lock()
	candidates := b.lastCandidates
	b.discMu.Unlock()

	if len(candidates) == 0 {
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "error",
			Error: "no candidates: run discovery first",
			At:    time.Now(),
		})
		return
	}

	id, err := b.validator.Validate(b.ctx, candidates, entityIndex)
	if err != nil {
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "validation_failed",
			Error: err.Error(),
			At:    time.Now(),
		})
		return
	}

	b.engine.Accept()
	b.publishDiscoveryEvent(DiscoveryEventMessage{
		Type:     "validated",
		Codec:    id.CodecID,
		ForcedID: id.ID,
		Index:    id.Index,
		At:       time.Now(),
	})
}

// runManualValidation blinks a single operator-supplied identity.
func (b *Bridge) runManualValidation(id codecs.Identity, entityIndex int) {
	if err := b.validator.ValidateManual(b.ctx, id, entityIndex); err != nil {
		b.publishDiscoveryEvent(DiscoveryEventMessage{
			Type:  "validation_failed",
			Error: err.Error(),
			At:    time.Now(),
		})
		return
	}
	b.publishDiscoveryEvent(DiscoveryEventMessage{
		Type:     "validated",
		Codec:    id.CodecID,
		ForcedID: id.ID,
		Index:    id.Index,
		At:       time.Now(),
	})
}

// cancelDiscovery aborts a running discovery window, if any.
func (b *Bridge) cancelDiscovery() {
	b.discMu.Lock()
	cancel := b.discCancel
	b.discMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// blink transmits one validation advertisement and waits for the queue
// result, so the validator's confirmation window opens only after the
// burst actually went out.
func (b *Bridge) blink(ctx context.Context, codec *codecs.Codec, adv codecs.Advertisement) error {
	raw := adv.Bytes()
	b.mir.NoteTransmitted(raw, time.Now())

	result := make(chan error, 1)
	req := transport.Request{
		QueueID: "validation/" + codec.ID(),
		Raw:     raw,
		Params:  transport.ParamsForCodec(codec),
		Result:  result,
	}
	if err := b.queue.Enqueue(req); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishDiscoveryEvent publishes a discovery progress message.
func (b *Bridge) publishDiscoveryEvent(ev DiscoveryEventMessage) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logError("failed to marshal discovery event", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.DiscoveryEvent(), payload, b.qos, false); err != nil {
		b.logError("failed to publish discovery event", err)
	}
}

// SetLogger sets the logger after construction.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if l := b.getLogger(); l != nil {
		l.Error(msg, "error", err)
	}
}
