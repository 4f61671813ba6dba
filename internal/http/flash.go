package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const (
	flashCookie = "cafe_flash"
	// encoded cookie value; leaves room for name and attributes under 4096
	maxFlashBytes = 3800

	flashSuccess = "success"
	flashError   = "error"
)

// flash is a one-shot notice carried across a redirect.
type flash struct {
	Kind    string   `json:"k"`
	Message string   `json:"m"`
	Receipt *receipt `json:"r,omitempty"`
}

// receipt summarizes a just-placed order.
type receipt struct {
	OrderID int64         `json:"id"`
	Lines   []receiptLine `json:"l,omitempty"`
	Total   string        `json:"t"`
}

type receiptLine struct {
	Name      string `json:"n"`
	Qty       int    `json:"q"`
	Toppings  string `json:"p"`
	LineTotal string `json:"s"`
}

func setFlash(w http.ResponseWriter, kind, message string) {
	writeFlash(w, flash{Kind: kind, Message: message})
}

func writeFlash(w http.ResponseWriter, f flash) {
	data, err := json.Marshal(f)
	if err == nil && base64.RawURLEncoding.EncodedLen(len(data)) > maxFlashBytes && f.Receipt != nil {
		// keep the order id and total when the lines do not fit in a cookie
		f.Receipt.Lines = nil
		data, err = json.Marshal(f)
	}
	if err != nil {
		return
	}
	value := base64.RawURLEncoding.EncodeToString(data)
	if len(value) > maxFlashBytes {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending notice.
func popFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f flash
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	return &f
}
