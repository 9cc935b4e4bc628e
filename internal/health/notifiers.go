package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"

	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/errors"
	commonhttp "api-gateway/internal/common/http"
	"api-gateway/internal/common/logging"
)

// LogNotifier writes alerts to the logger. It is always installed.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, alert Alert) error {
	fields := []logging.Field{
		{Key: "previous", Value: alert.Previous},
		{Key: "current", Value: alert.Current},
		logging.Strings("reasons", alertReasons(alert)),
	}
	if alert.Current == StatusHealthy {
		n.logger.Info("Gateway health recovered", fields...)
	} else {
		n.logger.Warn("Gateway health degraded", fields...)
	}
	return nil
}

// HTTPNotifier POSTs the alert as JSON. Calls go through a circuit breaker
// so a dead alert endpoint costs one fast failure per evaluation.
type HTTPNotifier struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

func NewHTTPNotifier(url string, logger logging.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		url:     url,
		client:  commonhttp.NewHTTPClientWithTimeout(10 * time.Second),
		breaker: circuitbreaker.New("alert:http", circuitbreaker.AlertConfig, logger),
	}
}

func (n *HTTPNotifier) Breaker() *circuitbreaker.Breaker { return n.breaker }

func (n *HTTPNotifier) Name() string { return "http" }

func (n *HTTPNotifier) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return errors.InternalError("failed to encode alert", err)
	}

	return n.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return errors.ConnectionError("alert webhook unreachable", err)
		}
		_, _ = commonhttp.ReadBody(resp)
		if !commonhttp.IsSuccess(resp.StatusCode) {
			return errors.ConnectionError(fmt.Sprintf("alert webhook returned HTTP %d", resp.StatusCode), nil)
		}
		return nil
	})
}

// snsPublisher is the part of the SNS client the notifier uses.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes alerts to an SNS topic.
type SNSNotifier struct {
	topicARN string
	client   snsPublisher
	breaker  *circuitbreaker.Breaker
}

// NewSNSNotifier builds an SNS client from static credentials when given,
// otherwise from the default AWS credential chain.
func NewSNSNotifier(ctx context.Context, region, accessKeyID, secretAccessKey, topicARN string, logger logging.Logger) (*SNSNotifier, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConfigurationError("failed to load AWS configuration").WithCause(err)
	}
	return newSNSNotifier(sns.NewFromConfig(cfg), topicARN, logger), nil
}

func newSNSNotifier(client snsPublisher, topicARN string, logger logging.Logger) *SNSNotifier {
	return &SNSNotifier{
		topicARN: topicARN,
		client:   client,
		breaker:  circuitbreaker.New("alert:sns", circuitbreaker.AlertConfig, logger),
	}
}

func (n *SNSNotifier) Breaker() *circuitbreaker.Breaker { return n.breaker }

func (n *SNSNotifier) Name() string { return "sns" }

func (n *SNSNotifier) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return errors.InternalError("failed to encode alert", err)
	}

	return n.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := n.client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.topicARN),
			Subject:  aws.String(alertSubject(alert)),
			Message:  aws.String(string(body)),
		})
		if err != nil {
			return errors.ConnectionError("failed to publish alert to SNS", err)
		}
		return nil
	})
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails a plain-text alert over SMTP.
type EmailNotifier struct {
	config  SMTPConfig
	send    sendFunc
	now     func() time.Time
	breaker *circuitbreaker.Breaker
}

func NewEmailNotifier(config SMTPConfig, logger logging.Logger) *EmailNotifier {
	return &EmailNotifier{
		config:  config,
		send:    smtp.SendMail,
		now:     time.Now,
		breaker: circuitbreaker.New("alert:email", circuitbreaker.AlertConfig, logger),
	}
}

func (n *EmailNotifier) Breaker() *circuitbreaker.Breaker { return n.breaker }

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(ctx context.Context, alert Alert) error {
	msg, err := n.compose(alert)
	if err != nil {
		return errors.InternalError("failed to compose alert email", err)
	}

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = &saslAuth{
			client: sasl.NewPlainClient("", n.config.Username, n.config.Password),
			host:   n.config.Host,
		}
	}
	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))

	return n.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := n.send(addr, auth, n.config.From, n.config.To, msg); err != nil {
			return errors.ConnectionError("failed to send alert email", err)
		}
		return nil
	})
}

func (n *EmailNotifier) compose(alert Alert) ([]byte, error) {
	var h mail.Header
	h.SetDate(n.now())
	h.SetSubject(alertSubject(alert))
	h.SetAddressList("From", []*mail.Address{{Address: n.config.From}})
	to := make([]*mail.Address, 0, len(n.config.To))
	for _, addr := range n.config.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(alertText(alert))); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// saslAuth adapts a go-sasl client to net/smtp. Like smtp.PlainAuth it
// refuses to send credentials over an unencrypted connection to a remote
// host.
type saslAuth struct {
	client sasl.Client
	host   string
}

func (a *saslAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, fmt.Errorf("unencrypted connection")
	}
	if server.Name != a.host {
		return "", nil, fmt.Errorf("wrong host name")
	}
	return a.client.Start()
}

func (a *saslAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	return a.client.Next(fromServer)
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}

func alertSubject(alert Alert) string {
	return fmt.Sprintf("[api-gateway] health %s (was %s)", alert.Current, alert.Previous)
}

func alertText(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gateway health changed from %s to %s at %s.\n\n",
		alert.Previous, alert.Current, alert.At.UTC().Format(time.RFC3339))
	for _, reason := range alertReasons(alert) {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	return b.String()
}

func alertReasons(alert Alert) []string {
	if alert.Report == nil {
		return nil
	}
	names := make([]string, 0, len(alert.Report.Components))
	for name := range alert.Report.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	var reasons []string
	for _, name := range names {
		for _, reason := range alert.Report.Components[name].Reasons {
			reasons = append(reasons, name+": "+reason)
		}
	}
	return reasons
}
