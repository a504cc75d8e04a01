package scenario

import (
	"context"
	"fmt"
	"net/url"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/config"
	http "github.com/tripplanner/tripload/internal/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Setup logs in with the configured credentials and creates the test group
// every VU reads. Any failure is fatal for the run and wraps ErrSetup.
func Setup(ctx context.Context, client Doer, cfg *config.RunConfig, logger *zap.Logger) (Fixture, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("running setup: authenticating and creating test data")

	loginResp, err := client.Do(ctx, http.NewRequest("POST", "/auth/login").WithBody(loginRequest{
		Email:    cfg.Credentials.Email,
		Password: cfg.Credentials.Password,
	}))
	if err != nil {
		return Fixture{}, fmt.Errorf("%w: login request: %w", ErrSetup, err)
	}
	if loginResp.StatusCode != 200 {
		return Fixture{}, fmt.Errorf("%w: login returned status %d, check the credentials", ErrSetup, loginResp.StatusCode)
	}

	token := loginResp.JSONField("token").String()
	if token == "" {
		return Fixture{}, fmt.Errorf("%w: login response has no token", ErrSetup)
	}
	logger.Info("setup: logged in", zap.String("email", cfg.Credentials.Email))

	group := createGroupRequest{
		Name:        cfg.Fixture.Name,
		Description: cfg.Fixture.Description,
		StartDate:   cfg.Fixture.StartDate,
		EndDate:     cfg.Fixture.EndDate,
	}
	if group.Name == "" {
		group.Name = GroupName()
	}

	groupResp, err := client.Do(ctx, http.NewRequest("POST", "/groups").WithBearer(token).WithBody(group))
	if err != nil {
		return Fixture{}, fmt.Errorf("%w: create group request: %w", ErrSetup, err)
	}
	if groupResp.StatusCode != 201 {
		return Fixture{}, fmt.Errorf("%w: create group returned status %d", ErrSetup, groupResp.StatusCode)
	}

	// The id may be a JSON string or number.
	id := groupResp.JSONField("id")
	if !id.Exists() || id.String() == "" {
		return Fixture{}, fmt.Errorf("%w: create group response has no id", ErrSetup)
	}

	fixture := Fixture{AuthToken: token, TestGroupID: id.String()}
	logger.Info("setup: test group created",
		zap.String("group_id", fixture.TestGroupID),
		zap.String("group_name", group.Name),
	)
	return fixture, nil
}

// GroupName generates a recognisable, unique name for the test group.
func GroupName() string {
	return fmt.Sprintf("tripload %s trip %s", gofakeit.City(), uuid.NewString()[:8])
}

// Teardown deletes the test group created by Setup. It expects 200 or 204.
func Teardown(ctx context.Context, client Doer, fixture Fixture, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fixture.TestGroupID == "" {
		return nil
	}

	resp, err := client.Do(ctx, http.NewRequest("DELETE", groupPath(fixture.TestGroupID)).WithBearer(fixture.AuthToken))
	if err != nil {
		return fmt.Errorf("delete test group %s: %w", fixture.TestGroupID, err)
	}
	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		return fmt.Errorf("delete test group %s: unexpected status %d", fixture.TestGroupID, resp.StatusCode)
	}

	logger.Info("teardown: test group deleted", zap.String("group_id", fixture.TestGroupID))
	return nil
}

func groupPath(id string) string {
	return "/groups/" + url.PathEscape(id)
}
