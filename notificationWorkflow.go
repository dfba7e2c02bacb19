package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/retail_backend/appctx"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	businessMutexMap = make(map[string]*sync.Mutex)
	globalMutex      = &sync.Mutex{}
)

// RunNotificationWorkflow subscribes to the retail events topic and reacts to
// order milestones (customer SMS, courier sync). Processing is serialized per
// business and deduplicated with DB-backed idempotency keys.
func RunNotificationWorkflow() error {
	logger := config.GetLogger()
	ctx := context.Background()
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	sender := &workflow.LogOnlySender{Logger: logger}

	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.PubSubMessage{}
		err := json.Unmarshal(msg.Data, &m)
		if err != nil {
			config.LogError(logger, "notificationWorkflow.go", "RunNotificationWorkflow", "Unmarshaling pubsub message", msg.Data, err)
			// Malformed payload never becomes parseable; drop it.
			msg.Ack()
			return
		}

		globalMutex.Lock()
		mutex, exists := businessMutexMap[m.BusinessId]
		if !exists {
			mutex = &sync.Mutex{}
			businessMutexMap[m.BusinessId] = mutex
		}
		globalMutex.Unlock()

		mutex.Lock()
		defer mutex.Unlock()

		ctx = context.WithValue(ctx, appctx.ContextKeyBusinessId, m.BusinessId)
		ctx = context.WithValue(ctx, appctx.ContextKeyUserName, "System")
		if err := processNotificationMessage(ctx, logger, sender, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "NotificationWorkflow",
				"business_id":    m.BusinessId,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		err := sub.Receive(ctx, callback)
		if err != nil {
			config.LogError(logger, "notificationWorkflow.go", "RunNotificationWorkflow", "Failed to receive messages", nil, err)
		}
	}()

	return nil
}

func processNotificationMessage(ctx context.Context, logger *logrus.Logger, sender workflow.NotificationSender, m config.PubSubMessage) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		handlerName := "notification:" + m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := workflow.BeginIdempotency(tx.WithContext(ctx), m.BusinessId, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := processNotification(tx.WithContext(ctx), logger, sender, m); err != nil {
			_ = workflow.MarkIdempotencyFailed(tx.WithContext(ctx), m.BusinessId, handlerName, messageId, err)
			return err
		}
		return workflow.MarkIdempotencySucceeded(tx.WithContext(ctx), m.BusinessId, handlerName, messageId)
	})
}

func processNotification(tx *gorm.DB, logger *logrus.Logger, sender workflow.NotificationSender, m config.PubSubMessage) error {
	switch m.ReferenceType {
	case string(models.EventReferenceTypeOrder):
		return workflow.ProcessOrderNotificationWorkflow(tx, logger, sender, m)
	default:
		// Ledger events carry no customer-facing notification yet.
		return nil
	}
}
