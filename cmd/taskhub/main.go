// Command taskhub serves the TaskHub JSON API: teams, boards, lists and
// cards with membership-based access control.
//
// Configuration comes from config files, TASKHUB_* environment variables
// and flags; see internal/app/bootstrap/config.go for the keys.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/taskhub/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
