package workflow

import (
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NotificationSender delivers a customer-facing message for an order event.
// Real deployments plug in SMS / Viber gateways; tests plug in a recorder.
type NotificationSender interface {
	SendOrderNotification(businessId string, orderId int, status models.OrderStatus, customerPhone string) error
}

// LogOnlySender is the default sender when no gateway is configured.
type LogOnlySender struct {
	Logger *logrus.Logger
}

func (s *LogOnlySender) SendOrderNotification(businessId string, orderId int, status models.OrderStatus, customerPhone string) error {
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":       "NotificationSender",
			"business_id": businessId,
			"order_id":    orderId,
			"status":      status,
		}).Info("order notification (log only)")
	}
	return nil
}

// notifiableStatuses are the customer-facing milestones worth a message.
var notifiableStatuses = map[models.OrderStatus]bool{
	models.OrderStatusConverted:         true,
	models.OrderStatusOutForDelivery:    true,
	models.OrderStatusHandoverToCourier: true,
	models.OrderStatusDelivered:         true,
	models.OrderStatusCancelled:         true,
}

// ProcessOrderNotificationWorkflow handles one order event from the outbox
// stream: load the order, and if the status milestone is customer-facing,
// hand it to the sender. Runs inside the consumer's transaction so the
// idempotency mark commits with it.
func ProcessOrderNotificationWorkflow(tx *gorm.DB, logger *logrus.Logger, sender NotificationSender, msg config.PubSubMessage) error {
	var order models.Order
	err := tx.Where("id = ? AND business_id = ?", msg.ReferenceId, msg.BusinessId).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// The order vanished (archived); nothing to notify, drop quietly.
			return nil
		}
		return err
	}

	if !notifiableStatuses[order.CurrentStatus] {
		return nil
	}
	if err := sender.SendOrderNotification(msg.BusinessId, order.ID, order.CurrentStatus, order.CustomerPhone); err != nil {
		config.LogError(logger, "notifications.go", "ProcessOrderNotificationWorkflow", "SendOrderNotification", order.ID, err)
		return err
	}
	return nil
}
