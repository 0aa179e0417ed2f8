package notification

import (
	"context"
	"errors"
	"fmt"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// OrderNotifier turns order events from Kafka into emails for the buyer and
// seller. It never writes to the order.
type OrderNotifier struct {
	Users  UserLookup
	Mailer Mailer
	log    *logger.Logger
}

func NewOrderNotifier(users UserLookup, mailer Mailer, log *logger.Logger) *OrderNotifier {
	return &OrderNotifier{Users: users, Mailer: mailer, log: log}
}

// HandleOrderEvent sends every email the event calls for. Failures for one
// recipient do not stop the others; the joined error is returned for logging.
func (n *OrderNotifier) HandleOrderEvent(ctx context.Context, event models.OrderEvent) error {
	var errs []error
	for _, mail := range emailsFor(event) {
		userID := event.Order.BuyerID
		if mail.party == models.PartySeller {
			userID = event.Order.SellerID
		}

		user, err := n.Users.GetUserByID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("look up %s %s: %w", mail.party, userID, err))
			continue
		}

		err = n.Mailer.Send(ctx, Message{
			RecipientAddress:   user.Email,
			TemplateID:         mail.template,
			SubstitutionFields: orderFields(event.Order, user.FullName),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send %s to %s: %w", mail.template, mail.party, err))
			continue
		}
		n.log.LogOrder("NOTIFY", event.OrderID, fmt.Sprintf("%s sent to %s", mail.template, mail.party))
	}
	return errors.Join(errs...)
}
