package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/resilience"
	"github.com/sells-group/resolver-cli/pkg/metaculus"
)

// metaculusRetries is the attempt count after the first try for API calls.
const metaculusRetries = 2

// CaseFromPost converts a resolved binary Metaculus post into a question
// case. Unresolved and non-binary posts cannot supply ground truth and are
// rejected.
func CaseFromPost(post metaculus.Post) (model.QuestionCase, error) {
	q, err := QuestionFromPost(post)
	if err != nil {
		return model.QuestionCase{}, err
	}

	label, err := labelFromResolution(post.Question.Resolution)
	if err != nil {
		return model.QuestionCase{}, eris.Wrapf(err, "registry: metaculus post %d", post.ID)
	}

	c := model.QuestionCase{Question: q, Actual: label}
	if err := c.Validate(); err != nil {
		return model.QuestionCase{}, err
	}
	return c, nil
}

// QuestionFromPost converts a binary Metaculus post into a question without
// requiring it to be resolved. Non-binary posts are rejected.
func QuestionFromPost(post metaculus.Post) (model.Question, error) {
	if post.Question == nil {
		return model.Question{}, eris.Errorf("registry: metaculus post %d has no question", post.ID)
	}
	if post.Question.Type != metaculus.QuestionTypeBinary {
		return model.Question{}, eris.Errorf("registry: metaculus post %d is %s, not binary", post.ID, post.Question.Type)
	}

	q := model.Question{
		ID:       fmt.Sprintf("metaculus-%d", post.ID),
		Title:    post.Title,
		URL:      post.PageURL(),
		Criteria: criteriaText(post.Question),
	}
	switch {
	case post.Question.ActualCloseTime != nil:
		q.CloseTime = post.Question.ActualCloseTime
	case post.Question.ScheduledCloseTime != nil:
		q.CloseTime = post.Question.ScheduledCloseTime
	}
	if err := q.Validate(); err != nil {
		return model.Question{}, err
	}
	return q, nil
}

// LoadMetaculusQuestion fetches one post as a bare question, open or
// resolved, retrying transient API failures.
func LoadMetaculusQuestion(ctx context.Context, client metaculus.Client, postID int) (model.Question, error) {
	post, err := resilience.DoVal(ctx, resilience.RetryFromConfig(metaculusRetries),
		func(ctx context.Context) (*metaculus.Post, error) {
			return client.GetPost(ctx, postID)
		})
	if err != nil {
		return model.Question{}, eris.Wrapf(err, "registry: metaculus post %d", postID)
	}
	return QuestionFromPost(*post)
}

// LoadMetaculusPost fetches one post and converts it, retrying transient API
// failures.
func LoadMetaculusPost(ctx context.Context, client metaculus.Client, postID int) (model.QuestionCase, error) {
	post, err := resilience.DoVal(ctx, resilience.RetryFromConfig(metaculusRetries),
		func(ctx context.Context) (*metaculus.Post, error) {
			return client.GetPost(ctx, postID)
		})
	if err != nil {
		return model.QuestionCase{}, eris.Wrapf(err, "registry: metaculus post %d", postID)
	}
	return CaseFromPost(*post)
}

// LoadMetaculusTournament fetches the resolved binary posts of a tournament
// in API order. Individual posts that cannot supply ground truth are skipped
// with a warning rather than failing the set.
func LoadMetaculusTournament(ctx context.Context, client metaculus.Client, tournament string, limit int) ([]model.QuestionCase, error) {
	posts, err := resilience.DoVal(ctx, resilience.RetryFromConfig(metaculusRetries),
		func(ctx context.Context) ([]metaculus.Post, error) {
			return client.ListTournamentPosts(ctx, tournament, limit)
		})
	if err != nil {
		return nil, eris.Wrapf(err, "registry: metaculus tournament %s", tournament)
	}

	cases := make([]model.QuestionCase, 0, len(posts))
	for _, post := range posts {
		c, err := CaseFromPost(post)
		if err != nil {
			zap.L().Warn("registry: skipping metaculus post",
				zap.Int("post_id", post.ID),
				zap.Error(err),
			)
			continue
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// labelFromResolution maps API resolution literals onto the ground-truth
// taxonomy. Ambiguous resolutions are genuine "evidence cannot settle it"
// outcomes; annulled questions were voided before their criteria could bind.
func labelFromResolution(resolution string) (model.Label, error) {
	switch resolution {
	case metaculus.ResolutionYes:
		return model.LabelTrue, nil
	case metaculus.ResolutionNo:
		return model.LabelFalse, nil
	case metaculus.ResolutionAmbiguous:
		return model.LabelUnresolvable, nil
	case metaculus.ResolutionAnnulled:
		return model.LabelCancelled, nil
	case "":
		return "", eris.New("not resolved")
	default:
		return "", eris.Errorf("unknown resolution %q", resolution)
	}
}

// criteriaText joins the question's description, resolution criteria, and
// fine print into the criteria the resolver works against.
func criteriaText(q *metaculus.Question) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.Description, q.ResolutionCriteria, q.FinePrint} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
