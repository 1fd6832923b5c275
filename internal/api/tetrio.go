// Package api is the upstream boundary: a fasthttp client for the
// ch.tetr.io JSON API plus the translation of raw payloads into domain
// records. Nothing in this package writes to the store.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tetrio-stats/internal/config"
	"tetrio-stats/internal/errs"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

type TetrioClient struct {
	baseURL string
	client  *fasthttp.Client
}

func NewTetrioClient(cfg *config.Config) *TetrioClient {
	return &TetrioClient{
		baseURL: cfg.APIBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *TetrioClient) GetUser(ctx context.Context, user string) (*UserResponse, error) {
	url := fmt.Sprintf("%s/users/%s", c.baseURL, user)
	return doRequest[UserResponse](ctx, c, url)
}

func (c *TetrioClient) GetRecentStream(ctx context.Context, id string) (*SingleStreamResponse, error) {
	url := fmt.Sprintf("%s/streams/any_userrecent_%s", c.baseURL, id)
	return doRequest[SingleStreamResponse](ctx, c, url)
}

func (c *TetrioClient) GetBestStream(ctx context.Context, gamemode, id string) (*SingleStreamResponse, error) {
	url := fmt.Sprintf("%s/streams/%s_userbest_%s", c.baseURL, gamemode, id)
	return doRequest[SingleStreamResponse](ctx, c, url)
}

func (c *TetrioClient) GetUserRecords(ctx context.Context, id string) (*UserRecordsResponse, error) {
	url := fmt.Sprintf("%s/users/%s/records", c.baseURL, id)
	return doRequest[UserRecordsResponse](ctx, c, url)
}

func (c *TetrioClient) GetLeagueStream(ctx context.Context, id string) (*LeagueStreamResponse, error) {
	url := fmt.Sprintf("%s/streams/league_userrecent_%s", c.baseURL, id)
	return doRequest[LeagueStreamResponse](ctx, c, url)
}

// GetLeagueAll fetches the full-population ranked leaderboard dump. The
// raw body is returned alongside the parsed response so callers can
// archive it byte-for-byte.
func (c *TetrioClient) GetLeagueAll(ctx context.Context) (*GlobalDumpResponse, []byte, error) {
	url := fmt.Sprintf("%s/users/lists/league/all", c.baseURL)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	var result GlobalDumpResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, nil, errs.Translationf("decoding league dump: %v", err)
	}
	return &result, body, nil
}

func (c *TetrioClient) get(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	// Upstream failures are not distinguished from "does not exist":
	// the caller gets a not-found signal either way.
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, errs.NotFoundf("API error: %d", resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func doRequest[T any](ctx context.Context, client *TetrioClient, url string) (*T, error) {
	body, err := client.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errs.Translationf("decoding response: %v", err)
	}
	return &result, nil
}

type UserResponse struct {
	Success bool     `json:"success"`
	Data    UserData `json:"data"`
}

type UserData struct {
	User UserInfo `json:"user"`
}

type UserInfo struct {
	ID          string     `json:"_id"`
	Username    string     `json:"username"`
	TS          *time.Time `json:"ts"`
	XP          float64    `json:"xp"`
	GamesPlayed int        `json:"gamesplayed"`
	GamesWon    int        `json:"gameswon"`
	GameTime    float64    `json:"gametime"`
	FriendCount int        `json:"friend_count"`
	League      LeagueInfo `json:"league"`
}

// LeagueInfo is present on every profile, even for players who have never
// competed; the glicko-family keys are simply absent in that case.
type LeagueInfo struct {
	GamesPlayed int      `json:"gamesplayed"`
	GamesWon    int      `json:"gameswon"`
	Rating      *float64 `json:"rating"`
	Rank        string   `json:"rank"`
	Standing    int      `json:"standing"`
	Glicko      *float64 `json:"glicko"`
	RD          *float64 `json:"rd"`
	APM         *float64 `json:"apm"`
	PPS         *float64 `json:"pps"`
	VS          *float64 `json:"vs"`
	Decaying    bool     `json:"decaying"`
}

type SingleStreamResponse struct {
	Success bool             `json:"success"`
	Data    SingleStreamData `json:"data"`
}

type SingleStreamData struct {
	Records []SingleRecord `json:"records"`
}

type SingleRecord struct {
	ReplayID   string        `json:"replayid"`
	TS         time.Time     `json:"ts"`
	EndContext SingleContext `json:"endcontext"`
}

type SingleContext struct {
	GameType  string  `json:"gametype"`
	FinalTime float64 `json:"finalTime"`
	Score     int64   `json:"score"`
}

type UserRecordsResponse struct {
	Success bool            `json:"success"`
	Data    UserRecordsData `json:"data"`
}

type UserRecordsData struct {
	// Keyed by gamemode. A key is always present for both known modes,
	// with a null record if the player has never played the mode.
	Records map[string]ModeRecord `json:"records"`
}

type ModeRecord struct {
	Record *SingleRecord `json:"record"`
	Rank   *int          `json:"rank"`
}

type LeagueStreamResponse struct {
	Success bool             `json:"success"`
	Data    LeagueStreamData `json:"data"`
}

type LeagueStreamData struct {
	Records []LeagueRecord `json:"records"`
}

type LeagueRecord struct {
	ReplayID   string              `json:"replayid"`
	TS         time.Time           `json:"ts"`
	EndContext []LeagueParticipant `json:"endcontext"`
}

type LeagueParticipant struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Success  bool           `json:"success"`
	Wins     int            `json:"wins"`
	Points   LeaguePoints   `json:"points"`
	Handling LeagueHandling `json:"handling"`
}

type LeaguePoints struct {
	SecondaryTracking []*float64     `json:"secondaryAvgTracking"`
	TertiaryTracking  []*float64     `json:"tertiaryAvgTracking"`
	ExtraTracking     LeagueTracking `json:"extraAvgTracking"`
}

type LeagueTracking struct {
	VSScore []*float64 `json:"aggregatestats___vsscore"`
}

type LeagueHandling struct {
	ARR      decimal.Decimal `json:"arr"`
	DAS      decimal.Decimal `json:"das"`
	DCD      decimal.Decimal `json:"dcd"`
	SDF      decimal.Decimal `json:"sdf"`
	Safelock bool            `json:"safelock"`
	Cancel   bool            `json:"cancel"`
}

type GlobalDumpResponse struct {
	Success bool           `json:"success"`
	Data    GlobalDumpData `json:"data"`
}

type GlobalDumpData struct {
	Users []GlobalUser `json:"users"`
}

type GlobalUser struct {
	ID       string     `json:"_id"`
	Username string     `json:"username"`
	League   LeagueInfo `json:"league"`
}
