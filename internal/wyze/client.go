// Package wyze is a narrow client for the Wyze cloud API: it can log in
// with an API key pair, enumerate devices, and fetch the latest record of
// a scale. Nothing is cached; every sync attempt re-authenticates.
package wyze

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scalesync/server/internal/models"
)

const (
	defaultAuthURL  = "https://auth-prod.api.wyze.com"
	defaultAPIURL   = "https://api.wyzecam.com"
	defaultScaleURL = "https://wyze-platform-service.wyzecam.com"

	appVersion = "scalesync/1.0"
)

// Client talks to the Wyze cloud. The base URLs are overridable for tests.
type Client struct {
	AuthURL  string
	APIURL   string
	ScaleURL string

	HTTPClient *http.Client

	email    string
	password string
	keyID    string
	apiKey   string
}

// NewClient creates a client for the given account credentials.
func NewClient(email, password, keyID, apiKey string) *Client {
	return &Client{
		AuthURL:    defaultAuthURL,
		APIURL:     defaultAPIURL,
		ScaleURL:   defaultScaleURL,
		HTTPClient: &http.Client{},
		email:      email,
		password:   password,
		keyID:      keyID,
		apiKey:     apiKey,
	}
}

// hashPassword applies the triple-MD5 digest the Wyze login endpoint expects.
func hashPassword(password string) string {
	h := password
	for i := 0; i < 3; i++ {
		sum := md5.Sum([]byte(h))
		h = hex.EncodeToString(sum[:])
	}
	return h
}

// Login authenticates and returns a short-lived access token.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.email == "" || c.password == "" || c.keyID == "" || c.apiKey == "" {
		return "", fmt.Errorf("wyze credentials are not configured")
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": hashPassword(c.password),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.AuthURL+"/api/user/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Keyid", c.keyID)
	req.Header.Set("Apikey", c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wyze login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wyze login returned status %d", resp.StatusCode)
	}

	var loginResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("wyze login response: %w", err)
	}
	if loginResp.AccessToken == "" {
		return "", fmt.Errorf("wyze login returned no access token")
	}
	return loginResp.AccessToken, nil
}

// ListDevices returns all devices registered to the account.
func (c *Client) ListDevices(ctx context.Context, token string) ([]models.ScaleDevice, error) {
	body, err := json.Marshal(map[string]interface{}{
		"access_token": token,
		"app_ver":      appVersion,
		"ts":           time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIURL+"/app/v2/home_page/get_object_list", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wyze device list request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wyze device list returned status %d", resp.StatusCode)
	}

	var listResp struct {
		Data struct {
			DeviceList []models.ScaleDevice `json:"device_list"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("wyze device list response: %w", err)
	}
	return listResp.Data.DeviceList, nil
}

// scaleRecord mirrors the wire shape of one scale reading. Metrics the
// scale did not report arrive as JSON null and stay nil here.
type scaleRecord struct {
	MeasureTS    int64    `json:"measure_ts"`
	Weight       float64  `json:"weight"`
	BodyFat      *float64 `json:"body_fat"`
	BodyWater    *float64 `json:"body_water"`
	BodyVFR      *float64 `json:"body_vfr"`
	BoneMineral  *float64 `json:"bone_mineral"`
	Muscle       *float64 `json:"muscle"`
	BMR          *float64 `json:"bmr"`
	BodyType     *float64 `json:"body_type"`
	MetabolicAge *float64 `json:"metabolic_age"`
	BMI          *float64 `json:"bmi"`
}

// LatestScaleRecord fetches the most recent measurement for the scale with
// the given MAC. Returns models.ErrNoMeasurement when the scale has no
// records yet.
func (c *Client) LatestScaleRecord(ctx context.Context, token, mac string) (*models.MeasurementRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.ScaleURL+"/app/v2/device/scale/latest_records?device_mac="+mac, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Access-Token", token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wyze scale record request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wyze scale record returned status %d", resp.StatusCode)
	}

	var recordResp struct {
		Data struct {
			LatestRecords []scaleRecord `json:"latest_records"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&recordResp); err != nil {
		return nil, fmt.Errorf("wyze scale record response: %w", err)
	}
	if len(recordResp.Data.LatestRecords) == 0 {
		return nil, models.ErrNoMeasurement
	}

	rec := recordResp.Data.LatestRecords[0]
	return &models.MeasurementRecord{
		MeasuredAt:   time.Unix(rec.MeasureTS/1000, 0).UTC(),
		Weight:       rec.Weight,
		BodyFat:      rec.BodyFat,
		BodyWater:    rec.BodyWater,
		VisceralFat:  rec.BodyVFR,
		BoneMineral:  rec.BoneMineral,
		Muscle:       rec.Muscle,
		BMR:          rec.BMR,
		BodyType:     rec.BodyType,
		MetabolicAge: rec.MetabolicAge,
		BMI:          rec.BMI,
	}, nil
}
