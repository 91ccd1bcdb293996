// Package metrics holds the prometheus collectors for the client and the
// relay, and an optional /metrics listener.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cipherlink"

var (
	// MessagesSent counts ciphertexts handed to the relay.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "messages_sent_total",
		Help:      "Number of encrypted messages sent to the relay",
	})

	// MessagesReceived counts message events from known senders.
	MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "messages_received_total",
		Help:      "Number of messages received from the relay",
	})

	// EncryptFailures counts outgoing messages recorded as inline errors.
	EncryptFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "encrypt_failures_total",
		Help:      "Number of outgoing messages that could not be encrypted",
	})

	// DecryptFailures counts incoming messages replaced by a placeholder.
	DecryptFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "decrypt_failures_total",
		Help:      "Number of incoming messages that could not be decrypted",
	})

	// DroppedEnvelopes counts inbound envelopes ignored by the session,
	// labelled with the reason.
	DroppedEnvelopes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "dropped_envelopes_total",
		Help:      "Number of inbound envelopes dropped, by reason",
	}, []string{"reason"})

	// RelayMessagesRouted counts messages the relay forwarded.
	RelayMessagesRouted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "messages_routed_total",
		Help:      "Number of messages forwarded to an online recipient",
	})

	// RelayRejectedLogins counts refused register, login and authorize requests.
	RelayRejectedLogins = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "rejected_logins_total",
		Help:      "Number of rejected login, register and authorize requests",
	})

	// RelayOnlineUsers is the number of users with a live socket.
	RelayOnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "online_users",
		Help:      "Number of users with a bound socket",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		MessagesReceived,
		EncryptFailures,
		DecryptFailures,
		DroppedEnvelopes,
		RelayMessagesRouted,
		RelayRejectedLogins,
		RelayOnlineUsers,
	)
}

// Serve exposes the default registry on addr at /metrics. An empty addr
// disables the listener and returns nil.
func Serve(addr string, logger *log.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics listener: %v", err)
		}
	}()
	return srv
}
