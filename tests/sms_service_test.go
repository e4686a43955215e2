package tests

import (
	"context"
	"testing"

	"github.com/soundroots/communityos/app/services"
	"github.com/soundroots/communityos/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSMSService(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordsSentMessages", func(t *testing.T) {
		svc := services.NewMockSMSService().(*services.MockSMSService)

		err := svc.SendSMS(ctx, "+447700900123", "Your verification code is: 123456", nil)
		require.NoError(t, err)

		sent := svc.GetSentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "+447700900123", sent[0].Recipient)
		assert.Contains(t, sent[0].Message, "123456")
		assert.Nil(t, sent[0].UserID)
		assert.False(t, sent[0].SentAt.IsZero())
	})

	t.Run("SendOTPDelegatesToSendSMS", func(t *testing.T) {
		svc := services.NewMockSMSService().(*services.MockSMSService)

		err := svc.SendOTP(ctx, "+447700900456", "Your code is 654321", utils.ToPtr(int64(42)))
		require.NoError(t, err)

		sent := svc.GetSentMessages()
		require.Len(t, sent, 1)
		require.NotNil(t, sent[0].UserID)
		assert.Equal(t, int64(42), *sent[0].UserID)
	})

	t.Run("SendBulkRecordsEachRecipient", func(t *testing.T) {
		svc := services.NewMockSMSService().(*services.MockSMSService)

		err := svc.SendBulk(ctx, []string{"+447700900001", "+447700900002"}, "Platform update", nil)
		require.NoError(t, err)

		sent := svc.GetSentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, "+447700900001", sent[0].Recipient)
		assert.Equal(t, "+447700900002", sent[1].Recipient)
	})

	t.Run("ClearSentMessages", func(t *testing.T) {
		svc := services.NewMockSMSService().(*services.MockSMSService)

		require.NoError(t, svc.SendSMS(ctx, "+447700900123", "hello", nil))
		svc.ClearSentMessages()
		assert.Empty(t, svc.GetSentMessages())
	})
}

func TestNotificationServiceValidation(t *testing.T) {
	svc := services.NewNotificationService(
		services.NewMockSMSProvider(),
		services.NewMockEmailProvider(),
	)

	t.Run("AcceptsE164Mobile", func(t *testing.T) {
		assert.NoError(t, svc.SendSMS("+447700900123", "hello"))
	})

	t.Run("RejectsNonE164Mobile", func(t *testing.T) {
		assert.Error(t, svc.SendSMS("07700900123", "hello"))
		assert.Error(t, svc.SendSMS("+4477", "hello"))
	})

	t.Run("RejectsMalformedEmail", func(t *testing.T) {
		assert.Error(t, svc.SendEmail("not-an-email", "Subject", "Body"))
		assert.NoError(t, svc.SendEmail("user@example.com", "Subject", "Body"))
	})
}

// The provider adapter lets the OTP gateway serve the notification service.
func TestSMSServiceProviderAdapter(t *testing.T) {
	mock := services.NewMockSMSService().(*services.MockSMSService)
	provider := services.NewSMSServiceProvider(mock)

	notification := services.NewNotificationService(provider, services.NewMockEmailProvider())
	require.NoError(t, notification.SendSMS("+447700900123", "adapter test"))

	sent := mock.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+447700900123", sent[0].Recipient)
	assert.Equal(t, "adapter test", sent[0].Message)
}
