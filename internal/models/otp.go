package models

import "time"

// OTPRecord is the single live code for a phone number. Issuing a new code
// replaces the record; nothing deletes it.
type OTPRecord struct {
	PhoneNumber string    `json:"phone_number" dynamodbav:"phone_number" bson:"phone_number"`
	Code        string    `json:"code" dynamodbav:"code" bson:"code"`
	IssuedAt    time.Time `json:"issued_at" dynamodbav:"issued_at" bson:"issued_at"`
}

func (o *OTPRecord) GetPK() string {
	return "OTP#" + o.PhoneNumber
}

func (o *OTPRecord) GetSK() string {
	return "METADATA"
}

// Age is the absolute distance between now and the issue time, so a record
// stamped slightly in the future by a skewed clock still ages normally.
func (o *OTPRecord) Age(now time.Time) time.Duration {
	d := now.Sub(o.IssuedAt)
	if d < 0 {
		return -d
	}
	return d
}
