package cardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"pfskit/internal/domain"
)

// Client talks to the ephemeral cards service over HTTP. Every request
// carries the access token and a fresh correlation id; non-2xx responses
// are decoded into RemoteServiceError so callers can match on the remote
// error code.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

// New returns a client for the service at base, authenticating with token.
func New(base, token string) *Client {
	return &Client{Base: base, Token: token, HTTP: http.DefaultClient}
}

var _ domain.CardService = (*Client)(nil)

type bootstrapRequest struct {
	LongTermCard domain.CardRequest   `json:"long_term_card"`
	OneTimeCards []domain.CardRequest `json:"one_time_cards"`
}

type bootstrapResponse struct {
	LongTermCard domain.Card   `json:"long_term_card"`
	OneTimeCards []domain.Card `json:"one_time_cards"`
}

type oneTimeCardsRequest struct {
	OneTimeCards []domain.CardRequest `json:"one_time_cards"`
}

type validateRequest struct {
	OneTimeCardsIDs []string `json:"one_time_cards_ids"`
}

type validateResponse struct {
	ExhaustedOneTimeCardsIDs []string `json:"exhausted_one_time_cards_ids"`
}

type cardsSetsRequest struct {
	IdentityCardsIDs []string `json:"identity_cards_ids"`
}

type cardsSetResponse struct {
	IdentityCard domain.Card  `json:"identity_card"`
	LongTermCard domain.Card  `json:"long_term_card"`
	OneTimeCard  *domain.Card `json:"one_time_card,omitempty"`
}

// BootstrapCardsSet publishes a long-term card and a batch of one-time
// cards in one call.
func (c *Client) BootstrapCardsSet(ctx context.Context, ownerID string, ltc domain.CardRequest, otc []domain.CardRequest) (domain.Card, []domain.Card, error) {
	var out bootstrapResponse
	err := c.post(ctx, "/v1/recipient/"+url.PathEscape(ownerID)+"/cards",
		bootstrapRequest{LongTermCard: ltc, OneTimeCards: otc}, &out)
	if err != nil {
		return domain.Card{}, nil, err
	}
	return out.LongTermCard, out.OneTimeCards, nil
}

// CreateOneTimeCards publishes one-time cards only.
func (c *Client) CreateOneTimeCards(ctx context.Context, ownerID string, otc []domain.CardRequest) ([]domain.Card, error) {
	var out []domain.Card
	err := c.post(ctx, "/v1/recipient/"+url.PathEscape(ownerID)+"/cards/one-time",
		oneTimeCardsRequest{OneTimeCards: otc}, &out)
	return out, err
}

// GetCardsStatus returns the remote active and exhausted counts.
func (c *Client) GetCardsStatus(ctx context.Context, ownerID string) (domain.CardsStatus, error) {
	var out domain.CardsStatus
	err := c.getJSON(ctx, "/v1/recipient/"+url.PathEscape(ownerID)+"/cards/status", &out)
	return out, err
}

// ValidateOneTimeCards returns the subset of cardIDs the service reports as
// already handed out.
func (c *Client) ValidateOneTimeCards(ctx context.Context, ownerID string, cardIDs []string) ([]string, error) {
	var out validateResponse
	err := c.post(ctx, "/v1/recipient/"+url.PathEscape(ownerID)+"/cards/validate",
		validateRequest{OneTimeCardsIDs: cardIDs}, &out)
	if err != nil {
		return nil, err
	}
	return out.ExhaustedOneTimeCardsIDs, nil
}

// GetRecipientCardsSets fetches handshake material for the given identity
// card ids, reserving one one-time card per recipient when available.
func (c *Client) GetRecipientCardsSets(ctx context.Context, identityIDs []string) ([]domain.RecipientCardsSet, error) {
	var out []cardsSetResponse
	err := c.post(ctx, "/v1/recipient/cards-sets", cardsSetsRequest{IdentityCardsIDs: identityIDs}, &out)
	if err != nil {
		return nil, err
	}
	sets := make([]domain.RecipientCardsSet, len(out))
	for i, r := range out {
		sets[i] = domain.RecipientCardsSet{
			IdentityCard: r.IdentityCard,
			LongTermCard: r.LongTermCard,
			OneTimeCard:  r.OneTimeCard,
		}
	}
	return sets, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return remoteError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func remoteError(resp *http.Response) error {
	re := &domain.RemoteServiceError{HTTPStatus: resp.StatusCode, Message: resp.Status}
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Code != 0 {
		re.Code = body.Code
		if body.Message != "" {
			re.Message = body.Message
		}
	}
	return re
}
