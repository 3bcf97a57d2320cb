package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/univpredict/early-warning-api/internal/models"
)

// AlertNotifier pushes freshly created critical/high alerts to the people who
// must act on them. Delivery is best-effort: a failed notification never rolls
// back alert creation.
type AlertNotifier interface {
	Notify(ctx context.Context, alert models.Alert, subject models.Subject) ([]string, error)
}

// LogAlertNotifier writes the notification to the structured log. Used when no
// broker is configured and as the development default.
type LogAlertNotifier struct {
	recipients []string
	logger     zerolog.Logger
}

// NewLogAlertNotifier constructs a logging notifier for the given recipients.
func NewLogAlertNotifier(recipients []string, logger zerolog.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{
		recipients: recipients,
		logger:     logger.With().Str("component", "alert_notifier").Logger(),
	}
}

// Notify logs the alert and reports the configured recipients as reached.
func (n *LogAlertNotifier) Notify(ctx context.Context, alert models.Alert, subject models.Subject) ([]string, error) {
	n.logger.Info().
		Uint("alert_id", alert.ID).
		Str("subject_code", subject.Code).
		Str("priority", string(alert.Priority)).
		Str("title", alert.Title).
		Msg("alert notification dispatched")

	return n.recipients, nil
}

type alertEvent struct {
	AlertID     uint      `json:"alert_id"`
	SubjectCode string    `json:"subject_code"`
	SubjectName string    `json:"subject_name"`
	Priority    string    `json:"priority"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	RiskIndex   float64   `json:"risk_index"`
	SentAt      time.Time `json:"sent_at"`
}

// BrokerAlertNotifier publishes alert events to redis pub/sub and NATS so the
// notification workers and dashboards can fan them out. Either client may be
// nil.
type BrokerAlertNotifier struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	recipients   []string
	logger       zerolog.Logger
}

// NewBrokerAlertNotifier constructs a broker-backed notifier. channelBase
// names the redis channel; the NATS subject is derived from it.
func NewBrokerAlertNotifier(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, recipients []string, logger zerolog.Logger) *BrokerAlertNotifier {
	subject := strings.ReplaceAll(channelBase, ":", ".")

	return &BrokerAlertNotifier{
		redis:        redisClient,
		redisChannel: channelBase,
		nats:         natsConn,
		natsSubject:  subject,
		recipients:   recipients,
		logger:       logger.With().Str("component", "alert_notifier").Logger(),
	}
}

// Notify serialises the alert event and publishes it on every configured broker.
func (n *BrokerAlertNotifier) Notify(ctx context.Context, alert models.Alert, subject models.Subject) ([]string, error) {
	event := alertEvent{
		AlertID:     alert.ID,
		SubjectCode: subject.Code,
		SubjectName: subject.Name,
		Priority:    string(alert.Priority),
		Title:       alert.Title,
		Message:     alert.Message,
		RiskIndex:   alert.RiskIndexAtCreation,
		SentAt:      time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	if n.redis != nil && n.redisChannel != "" {
		if err := n.redis.Publish(ctx, n.redisChannel, payload).Err(); err != nil {
			return nil, err
		}
	}

	if n.nats != nil && n.natsSubject != "" {
		if err := n.nats.Publish(n.natsSubject, payload); err != nil {
			return nil, err
		}
	}

	n.logger.Debug().Uint("alert_id", alert.ID).Str("channel", n.redisChannel).Msg("alert event published")

	return n.recipients, nil
}
