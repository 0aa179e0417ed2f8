package label

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ms-watchmarket/internal/models"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidLabel = errors.New("invalid return label")

// Payload is what the carrier scans at drop-off.
type Payload struct {
	OrderID        string       `json:"orderId"`
	ReturnID       string       `json:"returnId"`
	TrackingNumber string       `json:"trackingNumber"`
	PaidBy         models.Party `json:"paidBy"`
	ShipTo         string       `json:"shipTo"`
	IssuedAt       time.Time    `json:"issuedAt"`
}

type Generator struct {
	key  []byte
	size int
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{key: hashed[:], size: 256}
}

// PayloadFor builds the label payload for an approved return.
func PayloadFor(o models.Order, now time.Time) (Payload, error) {
	if o.Return == nil || o.Return.Status != models.ReturnApproved {
		return Payload{}, fmt.Errorf("%w: order %s has no approved return", ErrInvalidLabel, o.ID)
	}
	return Payload{
		OrderID:        o.ID,
		ReturnID:       o.Return.ID,
		TrackingNumber: o.Return.TrackingNumber,
		PaidBy:         o.Return.ShippingPaidBy,
		ShipTo:         o.SellerID,
		IssuedAt:       now.UTC(),
	}, nil
}

// Token seals p so a scanner holding the same secret can verify it.
func (g *Generator) Token(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	gcm, err := g.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// PNG renders the sealed payload as a QR code.
func (g *Generator) PNG(p Payload) ([]byte, error) {
	token, err := g.Token(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, g.size)
}

func (g *Generator) Open(token string) (Payload, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidLabel, err)
	}
	gcm, err := g.aead()
	if err != nil {
		return Payload{}, err
	}
	if len(raw) < gcm.NonceSize() {
		return Payload{}, ErrInvalidLabel
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidLabel, err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidLabel, err)
	}
	return p, nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
