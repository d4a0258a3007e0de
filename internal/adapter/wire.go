package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

// timeNow is the clock used for absent or unparseable dates
var timeNow = time.Now

// Layouts accepted for date fields, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// wireRecord is one loosely-typed object from the backend. Every lookup accepts
// the camelCase key and its snake_case spelling.
type wireRecord map[string]json.RawMessage

func decodeRecord(raw json.RawMessage) (wireRecord, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var rec wireRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return rec, true
}

func decodeList(raw json.RawMessage) []wireRecord {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]wireRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := decodeRecord(item); ok {
			out = append(out, rec)
		}
	}
	return out
}

// snakeCase converts "marketplaceId" to "marketplace_id"
func snakeCase(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lookup returns the raw value under key or its snake_case spelling. JSON null counts as absent.
func (r wireRecord) lookup(key string) (json.RawMessage, bool) {
	for _, k := range []string{key, snakeCase(key)} {
		v, ok := r[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		return v, true
	}
	return nil, false
}

// scalar returns the value as text: strings unquoted, numbers and booleans verbatim
func (r wireRecord) scalar(key string) (string, bool) {
	raw, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	default:
		return string(raw), true
	}
}

func (r wireRecord) str(key string) string {
	s, _ := r.scalar(key)
	return s
}

func (r wireRecord) optStr(key string) *string {
	s, ok := r.scalar(key)
	if !ok {
		return nil
	}
	return &s
}

// id renders a numeric or string identifier in its local string form
func (r wireRecord) id(key string) string {
	s, ok := r.scalar(key)
	if !ok {
		return ""
	}
	return canonicalID(s)
}

func (r wireRecord) optID(key string) *string {
	s, ok := r.scalar(key)
	if !ok || s == "" {
		return nil
	}
	id := canonicalID(s)
	return &id
}

func canonicalID(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	// "12.0" from a loosely typed column
	if strings.HasSuffix(s, ".0") {
		if n, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
	}
	return s
}

func (r wireRecord) optInt(key string) *int64 {
	s, ok := r.scalar(key)
	if !ok {
		return nil
	}
	n, ok := parseInt(s)
	if !ok {
		return nil
	}
	return &n
}

func (r wireRecord) integer(key string, def int64) int64 {
	if n := r.optInt(key); n != nil {
		return *n
	}
	return def
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func (r wireRecord) optFloat(key string) *float64 {
	s, ok := r.scalar(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// truthy treats PHP-style "0", "" and "false" as false
func (r wireRecord) truthy(key string) bool {
	s, ok := r.scalar(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "0.0":
		return false
	}
	return true
}

func (r wireRecord) date(key string) time.Time {
	s, ok := r.scalar(key)
	if !ok {
		return timeNow().UTC()
	}
	if t, ok := parseDate(s); ok {
		return t
	}
	return timeNow().UTC()
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	// unix seconds
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func decodeUser(r wireRecord) models.User {
	return models.User{
		ID:        r.id("id"),
		Name:      r.str("name"),
		Email:     r.str("email"),
		Avatar:    r.optStr("avatar"),
		Credits:   r.integer("credits", 0),
		CreatedAt: r.date("createdAt"),
	}
}

func decodeMarketplace(r wireRecord) models.Marketplace {
	return models.Marketplace{
		ID:        r.id("id"),
		Name:      r.str("name"),
		Slug:      r.str("slug"),
		City:      r.str("city"),
		CreatedAt: r.date("createdAt"),
		OwnerID:   r.id("ownerId"),
	}
}

func decodeMembership(r wireRecord) models.MarketplaceUser {
	mu := models.MarketplaceUser{
		UserID:        r.id("userId"),
		MarketplaceID: r.id("marketplaceId"),
		Role:          types.UserRole(strings.ToUpper(r.str("role"))),
		Rating:        r.optFloat("rating"),
		CompletedJobs: r.optInt("completedJobs"),
		JobsCreated:   r.optInt("jobsCreated"),
		Earnings:      r.optInt("earnings"),
		Description:   r.optStr("description"),
	}
	if s, ok := r.scalar("status"); ok && s != "" {
		status := types.ProducerStatus(strings.ToUpper(s))
		mu.Status = &status
	}
	if s, ok := r.scalar("approvalStatus"); ok && s != "" {
		approval := types.ApprovalStatus(strings.ToUpper(s))
		mu.ApprovalStatus = &approval
	}
	return mu
}

func decodeJob(r wireRecord) models.Job {
	status := types.JobOpen
	if s, ok := r.scalar("status"); ok && s != "" {
		status = types.JobStatus(strings.ToUpper(s))
	}
	return models.Job{
		ID:            r.id("id"),
		MarketplaceID: r.id("marketplaceId"),
		CustomerID:    r.id("customerId"),
		ProducerID:    r.optID("producerId"),
		Title:         r.str("title"),
		Description:   r.str("description"),
		Address:       r.str("address"),
		PreferredTime: r.str("preferredTime"),
		Price:         r.integer("price", 0),
		IsPaid:        r.truthy("isPaid"),
		Status:        status,
		CreatedAt:     r.date("createdAt"),
		Lat:           r.optFloat("lat"),
		Lng:           r.optFloat("lng"),
	}
}

func decodeFavorite(r wireRecord) models.FavoriteMarketplace {
	return models.FavoriteMarketplace{
		UserID:        r.id("userId"),
		MarketplaceID: r.id("marketplaceId"),
	}
}

// DecodeSnapshot normalizes a session payload. A nil snapshot with a nil error
// means the backend reported no signed-in user.
func DecodeSnapshot(body []byte) (*models.Snapshot, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	top, ok := decodeRecord(body)
	if !ok {
		return nil, fmt.Errorf("session payload is not a JSON object")
	}

	rawUser, ok := top.lookup("currentUser")
	if !ok {
		return nil, nil
	}
	userRec, ok := decodeRecord(rawUser)
	if !ok || len(userRec) == 0 {
		// false, 0, "" or {} all mean signed out
		return nil, nil
	}

	current := decodeUser(userRec)
	snap := &models.Snapshot{
		CurrentUser:      &current,
		AllUsers:         []models.User{},
		Marketplaces:     []models.Marketplace{},
		MarketplaceUsers: []models.MarketplaceUser{},
		Jobs:             []models.Job{},
		Favorites:        []models.FavoriteMarketplace{},
		FetchedAt:        timeNow().UTC(),
	}

	list := func(key string) []wireRecord {
		raw, _ := top.lookup(key)
		return decodeList(raw)
	}
	for _, r := range list("allUsers") {
		snap.AllUsers = append(snap.AllUsers, decodeUser(r))
	}
	for _, r := range list("marketplaces") {
		snap.Marketplaces = append(snap.Marketplaces, decodeMarketplace(r))
	}
	for _, r := range list("marketplaceUsers") {
		snap.MarketplaceUsers = append(snap.MarketplaceUsers, decodeMembership(r))
	}
	for _, r := range list("jobs") {
		snap.Jobs = append(snap.Jobs, decodeJob(r))
	}
	for _, r := range list("favorites") {
		snap.Favorites = append(snap.Favorites, decodeFavorite(r))
	}
	return snap, nil
}

// wireID sends numeric identifiers as JSON numbers and anything else as a string
func wireID(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
