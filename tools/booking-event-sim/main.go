package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotengine/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type bookingEvent struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id,omitempty"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(2)
	}
}

// newRootCmd builds the CLI. Every flag can also be set through the environment, e.g.
// KAFKA_BROKERS or STAFF_ID.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("kafka-brokers", "localhost:9092")

	root := &cobra.Command{
		Use:          "booking-event-sim",
		Short:        "Publish synthetic booking events to kafka and probe the availability service",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("kafka-brokers", "", "comma separated kafka brokers")
	root.PersistentFlags().String("appointment-id", "", "appointment id (generated when empty)")
	_ = v.BindPFlag("kafka-brokers", root.PersistentFlags().Lookup("kafka-brokers"))
	_ = v.BindPFlag("appointment-id", root.PersistentFlags().Lookup("appointment-id"))

	booked := &cobra.Command{
		Use:   "booked",
		Short: "Publish a booked event that blocks a resource",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return publish(cmd.Context(), v, "booked")
		},
	}
	booked.Flags().String("staff-id", "", "resource the booking blocks")
	booked.Flags().String("start", "", "booking start, RFC3339")
	booked.Flags().Duration("duration", 30*time.Minute, "booking length")
	_ = v.BindPFlag("staff-id", booked.Flags().Lookup("staff-id"))
	_ = v.BindPFlag("start", booked.Flags().Lookup("start"))
	_ = v.BindPFlag("duration", booked.Flags().Lookup("duration"))

	cancelled := &cobra.Command{
		Use:   "cancelled",
		Short: "Publish a cancelled event that frees a booking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return publish(cmd.Context(), v, "cancelled")
		},
	}

	root.AddCommand(booked, cancelled, newHealthCmd(v))
	return root
}

func publish(parent context.Context, v *viper.Viper, kind string) error {
	topic, msg, err := buildMessage(kind, v.GetString("appointment-id"), v.GetString("staff-id"), v.GetString("start"), v.GetDuration("duration"))
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	w := kafkax.NewWriter(v.GetString("kafka-brokers"))
	defer w.Close()

	msg.Topic = topic
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	fmt.Printf("published topic=%s appointment_id=%s\n", topic, string(msg.Key))
	return nil
}

func buildMessage(kind, appointmentID, staffID, start string, duration time.Duration) (string, kafka.Message, error) {
	if strings.TrimSpace(appointmentID) == "" {
		appointmentID = uuid.NewString()
	}
	ev := bookingEvent{AppointmentID: appointmentID, StaffID: strings.TrimSpace(staffID)}

	var topic string
	switch kind {
	case "booked":
		topic = "booking.appointment.booked.v1"
		if ev.StaffID == "" {
			return "", kafka.Message{}, fmt.Errorf("staff-id is required for booked events")
		}
		startTime, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return "", kafka.Message{}, fmt.Errorf("invalid start: %w", err)
		}
		if duration <= 0 {
			return "", kafka.Message{}, fmt.Errorf("duration must be positive")
		}
		ev.StartTime = startTime.UTC().Format(time.RFC3339)
		ev.EndTime = startTime.Add(duration).UTC().Format(time.RFC3339)
	case "cancelled":
		topic = "booking.appointment.cancelled.v1"
	default:
		return "", kafka.Message{}, fmt.Errorf("unsupported kind: %s", kind)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return "", kafka.Message{}, err
	}
	meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: topic}
	return topic, kafka.Message{
		Key:     []byte(appointmentID),
		Value:   body,
		Headers: meta.Headers(),
	}, nil
}
