package redisstore

import (
	"fmt"
	"strconv"

	"github.com/MrEthical07/authflow/model"
)

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func formatMs(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func parseMs(fields map[string]string, name string) (int64, error) {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", name, err)
	}
	return v, nil
}

func parseOptMs(fields map[string]string, name string) (*int64, error) {
	raw := fields[name]
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return &v, nil
}

func decodeUser(fields map[string]string) (*model.User, error) {
	created, err := parseMs(fields, "created_ms")
	if err != nil {
		return nil, err
	}
	return &model.User{
		ID:                  fields["id"],
		Name:                fields["name"],
		PasswordHash:        fields["password_hash"],
		Banned:              fields["banned"] == "1",
		LoginMethod:         model.LoginMethod(fields["login_method"]),
		SecondFactorEnabled: fields["second_factor"] == "1",
		CreatedMs:           created,
	}, nil
}

func decodeCode(fields map[string]string) (*model.VerificationCode, error) {
	c := &model.VerificationCode{
		CodeDigest:  fields["code_digest"],
		Type:        model.CodeType(fields["type"]),
		Email:       fields["email"],
		CallerState: fields["caller_state"],
	}
	var err error
	if c.CreatedMs, err = parseMs(fields, "created_ms"); err != nil {
		return nil, err
	}
	if c.ExpiresMs, err = parseMs(fields, "expires_ms"); err != nil {
		return nil, err
	}
	if c.ConsumedMs, err = parseOptMs(fields, "consumed_ms"); err != nil {
		return nil, err
	}
	if c.InvalidatedMs, err = parseOptMs(fields, "invalidated_ms"); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeSession(fields map[string]string) (*model.Session, error) {
	sess := &model.Session{
		ID:                  fields["id"],
		UserID:              fields["user_id"],
		IP:                  fields["ip"],
		RefreshSecretDigest: fields["refresh_digest"],
	}
	if fields["has_user_agent"] == "1" {
		ua := fields["user_agent"]
		sess.UserAgent = &ua
	}
	var err error
	if sess.CreatedMs, err = parseMs(fields, "created_ms"); err != nil {
		return nil, err
	}
	if sess.ExpiresMs, err = parseMs(fields, "expires_ms"); err != nil {
		return nil, err
	}
	if sess.InvalidatedMs, err = parseOptMs(fields, "invalidated_ms"); err != nil {
		return nil, err
	}
	return sess, nil
}
