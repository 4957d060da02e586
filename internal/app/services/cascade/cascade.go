// Package cascade deletes boards and teams with their children in a fixed,
// explicit order. Callers run it inside txn.Run so a failure part way
// through leaves no orphaned rows.
package cascade

import (
	"context"
	"fmt"

	attachmentstore "github.com/dalemusser/taskhub/internal/app/store/attachments"
	boardmemberstore "github.com/dalemusser/taskhub/internal/app/store/boardmembers"
	boardstore "github.com/dalemusser/taskhub/internal/app/store/boards"
	cardstore "github.com/dalemusser/taskhub/internal/app/store/cards"
	commentstore "github.com/dalemusser/taskhub/internal/app/store/comments"
	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	labelstore "github.com/dalemusser/taskhub/internal/app/store/labels"
	liststore "github.com/dalemusser/taskhub/internal/app/store/lists"
	teammemberstore "github.com/dalemusser/taskhub/internal/app/store/teammembers"
	teamstore "github.com/dalemusser/taskhub/internal/app/store/teams"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Step is one named deletion in a plan.
type Step struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Plan is an ordered list of steps.
type Plan []Step

// Report maps step names to the number of documents removed.
type Report map[string]int64

// Names lists the step names in execution order.
func (p Plan) Names() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Name
	}
	return out
}

// Execute runs the steps in order and stops at the first error.
func (p Plan) Execute(ctx context.Context) (Report, error) {
	rep := make(Report, len(p))
	for _, s := range p {
		n, err := s.Run(ctx)
		if err != nil {
			return rep, fmt.Errorf("cascade %s: %w", s.Name, err)
		}
		rep[s.Name] = n
	}
	return rep, nil
}

// Deleter builds and runs deletion plans.
type Deleter struct {
	teams        *teamstore.Store
	teamMembers  *teammemberstore.Store
	invitations  *invitationstore.Store
	boards       *boardstore.Store
	boardMembers *boardmemberstore.Store
	lists        *liststore.Store
	cards        *cardstore.Store
	comments     *commentstore.Store
	labels       *labelstore.Store
	attachments  *attachmentstore.Store
}

func New(db *mongo.Database) *Deleter {
	return &Deleter{
		teams:        teamstore.New(db),
		teamMembers:  teammemberstore.New(db),
		invitations:  invitationstore.New(db),
		boards:       boardstore.New(db),
		boardMembers: boardmemberstore.New(db),
		lists:        liststore.New(db),
		cards:        cardstore.New(db),
		comments:     commentstore.New(db),
		labels:       labelstore.New(db),
		attachments:  attachmentstore.New(db),
	}
}

// CardPlan removes the given cards and their children.
func (d *Deleter) CardPlan(cardIDs []primitive.ObjectID) Plan {
	return Plan{
		{"attachments", func(ctx context.Context) (int64, error) { return d.attachments.DeleteByCards(ctx, cardIDs) }},
		{"comments", func(ctx context.Context) (int64, error) { return d.comments.DeleteByCards(ctx, cardIDs) }},
		{"card_labels", func(ctx context.Context) (int64, error) { return d.labels.UnapplyAllFromCards(ctx, cardIDs) }},
		{"cards", func(ctx context.Context) (int64, error) { return d.cards.DeleteByIDs(ctx, cardIDs) }},
	}
}

// BoardPlan removes the given boards and everything under them.
// listIDs and cardIDs must be the lists of those boards and the cards of those lists.
func (d *Deleter) BoardPlan(boardIDs, listIDs, cardIDs []primitive.ObjectID) Plan {
	p := d.CardPlan(cardIDs)
	return append(p,
		Step{"lists", func(ctx context.Context) (int64, error) { return d.lists.DeleteByBoards(ctx, boardIDs) }},
		Step{"labels", func(ctx context.Context) (int64, error) { return d.labels.DeleteByBoards(ctx, boardIDs) }},
		Step{"board_members", func(ctx context.Context) (int64, error) { return d.boardMembers.DeleteByBoards(ctx, boardIDs) }},
		Step{"boards", func(ctx context.Context) (int64, error) { return d.boards.DeleteByIDs(ctx, boardIDs) }},
	)
}

// TeamPlan removes the team's boards (as BoardPlan) and then the team itself.
func (d *Deleter) TeamPlan(teamID primitive.ObjectID, boardIDs, listIDs, cardIDs []primitive.ObjectID) Plan {
	p := d.BoardPlan(boardIDs, listIDs, cardIDs)
	return append(p,
		Step{"team_invitations", func(ctx context.Context) (int64, error) { return d.invitations.DeleteByTeam(ctx, teamID) }},
		Step{"team_members", func(ctx context.Context) (int64, error) { return d.teamMembers.DeleteByTeam(ctx, teamID) }},
		Step{"team", func(ctx context.Context) (int64, error) { return d.teams.Delete(ctx, teamID) }},
	)
}

// resolve loads the lists of boardIDs and the cards of those lists.
func (d *Deleter) resolve(ctx context.Context, boardIDs []primitive.ObjectID) (listIDs, cardIDs []primitive.ObjectID, err error) {
	listIDs, err = d.lists.IDsByBoards(ctx, boardIDs)
	if err != nil {
		return nil, nil, err
	}
	cardIDs, err = d.cards.IDsByLists(ctx, listIDs)
	if err != nil {
		return nil, nil, err
	}
	return listIDs, cardIDs, nil
}

// DeleteList removes a list, its cards and their children.
func (d *Deleter) DeleteList(ctx context.Context, listID primitive.ObjectID) (Report, error) {
	cardIDs, err := d.cards.IDsByLists(ctx, []primitive.ObjectID{listID})
	if err != nil {
		return nil, err
	}
	p := append(d.CardPlan(cardIDs),
		Step{"lists", func(ctx context.Context) (int64, error) { return d.lists.Delete(ctx, listID) }})
	return p.Execute(ctx)
}

// DeleteCard removes a single card and its children.
func (d *Deleter) DeleteCard(ctx context.Context, cardID primitive.ObjectID) (Report, error) {
	return d.CardPlan([]primitive.ObjectID{cardID}).Execute(ctx)
}

// DeleteBoards removes the boards and everything under them.
func (d *Deleter) DeleteBoards(ctx context.Context, boardIDs []primitive.ObjectID) (Report, error) {
	listIDs, cardIDs, err := d.resolve(ctx, boardIDs)
	if err != nil {
		return nil, err
	}
	return d.BoardPlan(boardIDs, listIDs, cardIDs).Execute(ctx)
}

// DeleteTeam removes the team, its boards and everything under them.
func (d *Deleter) DeleteTeam(ctx context.Context, teamID primitive.ObjectID) (Report, error) {
	boardIDs, err := d.boards.IDsByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	listIDs, cardIDs, err := d.resolve(ctx, boardIDs)
	if err != nil {
		return nil, err
	}
	return d.TeamPlan(teamID, boardIDs, listIDs, cardIDs).Execute(ctx)
}
