package backend

import (
	"context"
	"net/http"

	"github.com/hitoshi/pokedex/internal/model"
)

// Credentials はログインリクエストのペイロード。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration は登録リクエストのペイロード。confirmPasswordは空でも常に送信する。
type Registration struct {
	Credentials
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginResult はログインレスポンス。AccessTokenは含まれない場合がある。
type LoginResult struct {
	AccessToken string `json:"access_token"`
}

// Login は POST /users/login を呼び出す。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	in := Credentials{Email: email, Password: password}
	if err := c.call(ctx, "login", http.MethodPost, "/users/login", "", in, &res, model.MsgRequestFailed); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register は POST /users/register を呼び出す。
func (c *Client) Register(ctx context.Context, email, password, confirmPassword string) error {
	in := Registration{
		Credentials:     Credentials{Email: email, Password: password},
		ConfirmPassword: confirmPassword,
	}
	return c.call(ctx, "register", http.MethodPost, "/users/register", "", in, nil, model.MsgRequestFailed)
}
