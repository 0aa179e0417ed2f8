package notification

import (
	"fmt"

	"ms-watchmarket/internal/models"
)

const (
	TemplatePasswordReset = "password-reset"
	TemplateContact       = "contact-form"
	TemplateNewUser       = "welcome"

	TemplateOrderPlaced         = "order-placed"
	TemplatePaymentReceived     = "payment-received"
	TemplateAuthenticationStart = "authentication-started"
	TemplateAuthenticated       = "authentication-passed"
	TemplateShipped             = "order-shipped"
	TemplateDelivered           = "order-delivered"
	TemplateInspectionOpen      = "inspection-open"
	TemplateCompleted           = "order-completed"
	TemplateCancelled           = "order-cancelled"
	TemplateReturnRequested     = "return-requested"
	TemplateReturnDecided       = "return-decided"
	TemplateReturned            = "order-returned"
	TemplateRefunded            = "payment-refunded"
)

// recipients maps a status an order enters to who hears about it.
var recipients = map[models.OrderStatus]map[models.Party]string{
	models.StatusPendingPayment: {
		models.PartyBuyer: TemplateOrderPlaced,
	},
	models.StatusPaymentConfirmed: {
		models.PartyBuyer:  TemplatePaymentReceived,
		models.PartySeller: TemplatePaymentReceived,
	},
	models.StatusAuthenticationInProgress: {
		models.PartyBuyer: TemplateAuthenticationStart,
	},
	models.StatusAuthenticated: {
		models.PartyBuyer:  TemplateAuthenticated,
		models.PartySeller: TemplateAuthenticated,
	},
	models.StatusShipped: {
		models.PartyBuyer: TemplateShipped,
	},
	models.StatusDelivered: {
		models.PartySeller: TemplateDelivered,
	},
	models.StatusInspectionPeriod: {
		models.PartyBuyer: TemplateInspectionOpen,
	},
	models.StatusCompleted: {
		models.PartyBuyer:  TemplateCompleted,
		models.PartySeller: TemplateCompleted,
	},
	models.StatusCancelled: {
		models.PartyBuyer:  TemplateCancelled,
		models.PartySeller: TemplateCancelled,
	},
	models.StatusReturnRequested: {
		models.PartySeller: TemplateReturnRequested,
	},
	models.StatusReturned: {
		models.PartyBuyer:  TemplateReturned,
		models.PartySeller: TemplateReturned,
	},
}

// outgoing is one email to one party of an order.
type outgoing struct {
	party    models.Party
	template string
}

// emailsFor decides which emails an order event triggers.
func emailsFor(event models.OrderEvent) []outgoing {
	var out []outgoing
	switch event.Type {
	case models.EventOrderCreated:
		if event.Order.Status == models.StatusPendingPayment {
			out = append(out, outgoing{models.PartyBuyer, TemplateOrderPlaced})
		}
	case models.EventStatusChanged:
		// stable order: buyer first
		for _, party := range []models.Party{models.PartyBuyer, models.PartySeller} {
			if tmpl, ok := recipients[event.ToStatus][party]; ok {
				out = append(out, outgoing{party, tmpl})
			}
		}
	case models.EventReturnDecided:
		out = append(out, outgoing{models.PartyBuyer, TemplateReturnDecided})
	case models.EventPaymentUpdated:
		if event.Order.PaymentStatus == models.PaymentRefunded {
			out = append(out, outgoing{models.PartyBuyer, TemplateRefunded})
		}
	}
	return out
}

func orderFields(o models.Order, recipientName string) map[string]string {
	fields := map[string]string{
		"name":           recipientName,
		"orderId":        o.ID,
		"title":          o.Title,
		"brand":          o.Brand,
		"model":          o.Model,
		"status":         string(o.Status),
		"total":          fmt.Sprintf("%.2f %s", o.TotalCost, o.Currency),
		"trackingNumber": o.TrackingNumber,
		"carrier":        o.Carrier,
	}
	if o.Return != nil {
		fields["returnStatus"] = string(o.Return.Status)
		fields["returnLabelUrl"] = o.Return.LabelURL
		fields["returnNote"] = o.Return.DecisionNote
	}
	return fields
}
