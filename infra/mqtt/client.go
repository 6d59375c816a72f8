package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/elevfleet/core/logger"
	coremqtt "github.com/kilianp07/elevfleet/core/mqtt"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/monitoring"
	inflog "github.com/kilianp07/elevfleet/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoClient implements coremqtt.Transport on an MQTT broker.
type PahoClient struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger
	now    func() time.Time

	// ctx is handed to message handlers and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[string]subscription
	closed bool
}

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

var _ coremqtt.Transport = (*PahoClient)(nil)

// NewPahoClient connects to the MQTT broker. Subscriptions registered later
// are restored on every reconnect.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffMS <= 0 {
		cfg.BackoffMS = 100
	}
	log := inflog.New("mqtt_client")
	ctx, cancel := context.WithCancel(context.Background())
	pc := &PahoClient{
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]subscription),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		pc.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		cancel()
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

func (p *PahoClient) resubscribe(c pahoClient) {
	p.mu.Lock()
	subs := make(map[string]subscription, len(p.subs))
	for topic, s := range p.subs {
		subs[topic] = s
	}
	p.mu.Unlock()
	for topic, s := range subs {
		if token := c.Subscribe(topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

func (p *PahoClient) subscribe(topic string, qos byte, h paho.MessageHandler) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return coremqtt.ErrClosed
	}
	p.subs[topic] = subscription{qos: qos, handler: h}
	p.mu.Unlock()
	if !p.cli.IsConnected() {
		return nil
	}
	if token := p.cli.Subscribe(topic, qos, h); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// publish sends payload, retrying with exponential backoff. The final error
// is reported to monitoring.
func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, retained bool, v any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return coremqtt.ErrClosed
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	backoff := time.Duration(p.cfg.BackoffMS) * time.Millisecond
	var publishErr error
	for attempt := 0; ; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt >= p.cfg.MaxRetries {
			break
		}
		if err := sleep(ctx, backoff*time.Duration(1<<attempt)); err != nil {
			publishErr = err
			break
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PublishMove enqueues a movement command for car elevatorID.
func (p *PahoClient) PublishMove(ctx context.Context, elevatorID int64, floor int) (string, error) {
	cmd := model.MovementCommand{
		CommandID:   uuid.NewString(),
		ElevatorID:  elevatorID,
		TargetFloor: floor,
		IssuedAt:    p.now(),
	}
	topic := p.cfg.CommandTopic(elevatorID)
	if err := p.publish(ctx, topic, p.cfg.qos("command"), false, cmd); err != nil {
		return "", err
	}
	p.logger.Infof("sent movement command %s to %s", cmd.CommandID, topic)
	return cmd.CommandID, nil
}

// SubscribeCommands delivers commands of every car to h.
func (p *PahoClient) SubscribeCommands(h coremqtt.CommandHandler) error {
	topic := p.cfg.prefix() + "/+/command"
	return p.subscribe(topic, p.cfg.qos("command"), func(_ paho.Client, msg paho.Message) {
		var cmd model.MovementCommand
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			p.logger.Errorf("failed to decode command on %s: %v", msg.Topic(), err)
			return
		}
		if cmd.ElevatorID == 0 {
			id, ok := p.cfg.ElevatorFromTopic(msg.Topic())
			if !ok {
				p.logger.Warnf("command on %s without elevator id dropped", msg.Topic())
				return
			}
			cmd.ElevatorID = id
		}
		h(p.ctx, cmd)
	})
}

// PublishHeartbeat sends a heartbeat for car elevatorID.
func (p *PahoClient) PublishHeartbeat(ctx context.Context, elevatorID int64) error {
	hb := model.Heartbeat{ElevatorID: elevatorID, SentAt: p.now()}
	return p.publish(ctx, p.cfg.HeartbeatTopic(elevatorID), p.cfg.qos("heartbeat"), false, hb)
}

// SubscribeHeartbeats delivers heartbeats of every car to h. The car id is
// taken from the topic.
func (p *PahoClient) SubscribeHeartbeats(h coremqtt.HeartbeatHandler) error {
	topic := p.cfg.prefix() + "/+/heartbeat"
	return p.subscribe(topic, p.cfg.qos("heartbeat"), func(_ paho.Client, msg paho.Message) {
		id, ok := p.cfg.ElevatorFromTopic(msg.Topic())
		if !ok {
			p.logger.Warnf("heartbeat on unexpected topic %s dropped", msg.Topic())
			return
		}
		hb := model.Heartbeat{ElevatorID: id}
		if len(msg.Payload()) > 0 {
			if err := json.Unmarshal(msg.Payload(), &hb); err != nil {
				p.logger.Debugf("heartbeat payload on %s ignored: %v", msg.Topic(), err)
			}
			hb.ElevatorID = id
		}
		h(p.ctx, hb)
	})
}

// PublishStatus publishes the fleet status as a retained message.
func (p *PahoClient) PublishStatus(ctx context.Context, statuses []model.StatusSummary) error {
	return p.publish(ctx, p.cfg.StatusTopic(), p.cfg.qos("status"), true, statuses)
}

// Close cancels handler contexts and disconnects from the broker.
func (p *PahoClient) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.Disconnect()
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
