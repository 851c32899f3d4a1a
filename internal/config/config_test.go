package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "SMS_DRIVER", "OTP_VALID_FOR", "OTP_EXPOSE_CODE",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER", "Account_SID", "Auth_Token",
		"VERIFY_TOKEN_SECRET", "VERIFY_TOKEN_TTL", "KAFKA_BROKERS", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_DRIVER", "log")
	t.Setenv("VERIFY_TOKEN_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreMongoDB, cfg.Store.Driver)
	assert.Equal(t, time.Minute, cfg.OTP.ValidFor)
	assert.False(t, cfg.OTP.ExposeCode)
	assert.Equal(t, 10*time.Minute, cfg.Token.TTL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("SMS_DRIVER", "log")
	t.Setenv("VERIFY_TOKEN_SECRET", testSecret)
	t.Setenv("OTP_VALID_FOR", "90s")
	t.Setenv("OTP_EXPOSE_CODE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.OTP.ValidFor)
	assert.True(t, cfg.OTP.ExposeCode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_TwilioLegacyVariableNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("Account_SID", "AC123")
	t.Setenv("Auth_Token", "secret")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15005550006")
	t.Setenv("VERIFY_TOKEN_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SMSTwilio, cfg.SMS.Driver)
	assert.Equal(t, "AC123", cfg.SMS.AccountSID)
	assert.Equal(t, "secret", cfg.SMS.AuthToken)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "twilio credentials missing",
			env:     map[string]string{"VERIFY_TOKEN_SECRET": testSecret},
			wantErr: "TWILIO_ACCOUNT_SID",
		},
		{
			name:    "twilio sender missing",
			env:     map[string]string{"VERIFY_TOKEN_SECRET": testSecret, "TWILIO_ACCOUNT_SID": "AC1", "TWILIO_AUTH_TOKEN": "t"},
			wantErr: "TWILIO_PHONE_NUMBER",
		},
		{
			name:    "unknown store",
			env:     map[string]string{"VERIFY_TOKEN_SECRET": testSecret, "SMS_DRIVER": "log", "STORE_DRIVER": "postgres"},
			wantErr: "STORE_DRIVER",
		},
		{
			name:    "unknown sms driver",
			env:     map[string]string{"VERIFY_TOKEN_SECRET": testSecret, "SMS_DRIVER": "carrier-pigeon"},
			wantErr: "SMS_DRIVER",
		},
		{
			name:    "short secret",
			env:     map[string]string{"VERIFY_TOKEN_SECRET": "short", "SMS_DRIVER": "log"},
			wantErr: "at least 32 bytes",
		},
		{
			name:    "missing secret",
			env:     map[string]string{"SMS_DRIVER": "log"},
			wantErr: "VERIFY_TOKEN_SECRET",
		},
		{
			name:    "non-positive window",
			env:     map[string]string{"VERIFY_TOKEN_SECRET": testSecret, "SMS_DRIVER": "log", "OTP_VALID_FOR": "-1s"},
			wantErr: "OTP_VALID_FOR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
