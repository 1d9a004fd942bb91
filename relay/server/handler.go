package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/relay/model"
	"github.com/roomwire/roomwire-go/relay/storage"
)

// Ping is the health check.
func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "roomwire relay is running")
}

// RegisterKey publishes an address's messaging public key.
func (s *Server) RegisterKey(c echo.Context) error {
	addr, err := core.ParseAddress(strings.TrimSpace(c.Param("address")))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	var rec model.KeyRecord
	if err := c.Bind(&rec); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	raw, err := hex.DecodeString(rec.PublicKey)
	if err != nil || len(raw) != crypto.KeySize {
		return c.NoContent(http.StatusBadRequest)
	}
	if err := s.s.SetKey(c.Request().Context(), addr.String(), rec.PublicKey); err != nil {
		c.Logger().Error(err)
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusCreated)
}

// GetKey returns the published key for an address, 404 if none.
func (s *Server) GetKey(c echo.Context) error {
	addr, err := core.ParseAddress(strings.TrimSpace(c.Param("address")))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	value, err := s.s.GetKey(c.Request().Context(), addr.String())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		c.Logger().Error(err)
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, model.KeyRecord{
		Address:   addr.String(),
		PublicKey: value,
	})
}

// SubmitMessage fans one sealed blob out to every recipient's history.
// The sender must have registered a key; an unknown sender is rejected
// with 401.
func (s *Server) SubmitMessage(c echo.Context) error {
	var req model.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	sender, err := core.ParseAddress(strings.TrimSpace(req.Sender))
	if err != nil || len(req.Content) == 0 || len(req.Recipients) == 0 {
		return c.NoContent(http.StatusBadRequest)
	}

	ctx := c.Request().Context()
	if _, err := s.s.GetKey(ctx, sender.String()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.NoContent(http.StatusUnauthorized)
		}
		c.Logger().Error(err)
		return c.NoContent(http.StatusInternalServerError)
	}

	id := uuid.NewString()
	checksum := crypto.Checksum(req.Content)

	seen := make(map[core.Address]bool, len(req.Recipients))
	for _, r := range req.Recipients {
		addr, err := core.ParseAddress(strings.TrimSpace(r))
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true

		key, err := addr.Key()
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		msg := model.Message{
			ID:        id,
			Sender:    sender.String(),
			Recipient: addr.String(),
			Content:   req.Content,
			Checksum:  hex.EncodeToString(checksum[:]),
		}
		if err := s.s.AppendMessage(ctx, key.String(), msg); err != nil {
			c.Logger().Error(err)
			return c.NoContent(http.StatusInternalServerError)
		}
	}
	return c.JSON(http.StatusOK, model.SubmitResponse{ID: id})
}

// GetHistory returns the ordered history bound to an address key.
func (s *Server) GetHistory(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if raw, err := hex.DecodeString(key); err != nil || len(raw) != core.AddressKeySize {
		return c.NoContent(http.StatusBadRequest)
	}
	history, err := s.s.GetHistory(c.Request().Context(), key)
	if err != nil {
		c.Logger().Error(err)
		return c.NoContent(http.StatusInternalServerError)
	}
	if history == nil {
		history = []model.Message{}
	}
	return c.JSON(http.StatusOK, history)
}
