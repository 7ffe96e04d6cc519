package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
)

// Notifier is told about every newly confirmed booking.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, booking *model.Booking) error
}

// LogNotifier only logs. It stands in for delivery when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyBookingConfirmed(_ context.Context, booking *model.Booking) error {
	n.logger.Info("Booking confirmation",
		zap.String("booking_id", booking.ID.String()),
		zap.String("customer_email", booking.CustomerEmail),
		zap.String("date", booking.BookingDate()),
		zap.String("time", booking.StartTime.String()))
	return nil
}

type BookingEventPublisher interface {
	PublishBookingEvent(ctx context.Context, event model.BookingEvent) error
}

// EventNotifier hands the confirmation to the mail worker through the event stream.
type EventNotifier struct {
	publisher BookingEventPublisher
	clock     Clock
}

func NewEventNotifier(publisher BookingEventPublisher, clock Clock) *EventNotifier {
	return &EventNotifier{publisher: publisher, clock: clock}
}

func (n *EventNotifier) NotifyBookingConfirmed(ctx context.Context, booking *model.Booking) error {
	return n.publisher.PublishBookingEvent(ctx, model.NewBookingConfirmedEvent(booking, n.clock.Now()))
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier alerts staff in a chat about new bookings.
type TelegramNotifier struct {
	sender messageSender
	chatID int64
}

func NewTelegramNotifier(sender messageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

func (n *TelegramNotifier) NotifyBookingConfirmed(ctx context.Context, booking *model.Booking) error {
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   formatStaffAlert(booking),
	})
	if err != nil {
		return fmt.Errorf("send staff alert: %w", err)
	}
	return nil
}

func formatStaffAlert(b *model.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🍽 New booking %s %s\n", b.BookingDate(), b.StartTime)
	fmt.Fprintf(&sb, "Guests: %d", b.PartySize)
	if b.TableNumber != "" {
		fmt.Fprintf(&sb, ", table %s", b.TableNumber)
	}
	fmt.Fprintf(&sb, "\n%s, %s, %s", b.CustomerName, b.CustomerPhone, b.CustomerEmail)
	if b.Notes != nil && *b.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes: %s", *b.Notes)
	}
	if b.CreatedVia == model.CreatedViaAdmin {
		sb.WriteString("\n(added by staff)")
	}
	return sb.String()
}
