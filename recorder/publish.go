package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bus-bay-prediction-api/config"
	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/services"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Publisher announces board snapshots and newly recorded arrivals.
type Publisher interface {
	PublishBoard(ctx context.Context, board *models.BusInfoResponse) error
	PublishArrival(ctx context.Context, arrival *models.BusArrival) error
}

// Publishers fans out to every publisher and joins their errors.
type Publishers []Publisher

func (p Publishers) PublishBoard(ctx context.Context, board *models.BusInfoResponse) error {
	var errs []error
	for _, pub := range p {
		if err := pub.PublishBoard(ctx, board); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p Publishers) PublishArrival(ctx context.Context, arrival *models.BusArrival) error {
	var errs []error
	for _, pub := range p {
		if err := pub.PublishArrival(ctx, arrival); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type RedisPublisher struct {
	cache *services.CacheService
}

func NewRedisPublisher(cache *services.CacheService) *RedisPublisher {
	return &RedisPublisher{cache: cache}
}

func (p *RedisPublisher) PublishBoard(ctx context.Context, board *models.BusInfoResponse) error {
	return p.cache.Publish(ctx, services.LiveChannel, board)
}

func (p *RedisPublisher) PublishArrival(ctx context.Context, arrival *models.BusArrival) error {
	return p.cache.Publish(ctx, services.ArrivalsChannel, arrival)
}

// MQTTPublisher sends each arrival to <prefix>/<service>. Board snapshots
// stay on Redis.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "businfo-recorder-" + time.Now().Format("20060102150405")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnect = func(client mqtt.Client) {
		log.Info().Str("broker", cfg.URL).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", cfg.URL).Msg("mqtt not connected yet, retrying in background")
	} else if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", token.Error())
	}

	return &MQTTPublisher{client: client, prefix: cfg.TopicPrefix}, nil
}

func (p *MQTTPublisher) PublishBoard(ctx context.Context, board *models.BusInfoResponse) error {
	return nil
}

func (p *MQTTPublisher) PublishArrival(ctx context.Context, arrival *models.BusArrival) error {
	data, err := json.Marshal(arrival)
	if err != nil {
		return err
	}

	token := p.client.Publish(arrivalTopic(p.prefix, arrival.Service), 1, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("mqtt publish timed out")
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func arrivalTopic(prefix, service string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	service = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(service)
	return prefix + "/" + service
}
