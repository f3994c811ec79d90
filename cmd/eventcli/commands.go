package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrupp/eventhub/internal/client/backend"
	"github.com/mkrupp/eventhub/internal/client/signup"
	"github.com/mkrupp/eventhub/internal/domain"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{ //nolint:exhaustruct
		Use:           svcName,
		Short:         "Run one eventhub client tab",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			cmd.SetContext(ctx)

			return nil
		},
	}

	root.AddCommand(
		newSignUpCommand(a),
		newResendCommand(a),
		newConfirmCommand(a),
		newTabCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoAmICommand(a),
		newCitiesCommand(a),
		newFeedCommand(a),
		newUploadCommand(a),
	)

	return root
}

func newSignUpCommand(a *app) *cobra.Command {
	var (
		pending           domain.PendingRegistration
		password, confirm string
		kind              string
		cityID            int
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "signup",
		Short: "Create an account and keep the profile until it is confirmed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := checkPassword(password, confirm); err != nil {
				return err
			}

			pending.Kind = domain.AccountKind(kind)
			if cityID > 0 {
				pending.CityID = &cityID
			}

			if err := pending.Validate(time.Now()); err != nil {
				return err
			}

			client := a.client(ctx)

			available, err := client.NameAvailable(ctx, pending.Name)
			if err != nil {
				return err
			}

			if !available {
				return fmt.Errorf("%w: %s", domain.ErrProfileNameTaken, pending.Name)
			}

			if _, err := client.SignUp(ctx, pending.Email, password); err != nil {
				return err
			}

			// SavePending touches neither the channel nor the view.
			coordinator := signup.NewCoordinator(a.cfg.Signup, a, a.store, nil, nil)
			if err := coordinator.SavePending(ctx, pending); err != nil {
				return err
			}

			a.printf("confirmation email sent to %s", pending.Email)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&pending.Email, "email", "", "email address")
	flags.StringVar(&password, "password", "", "password, at least 6 characters")
	flags.StringVar(&confirm, "confirm-password", "", "password again")
	flags.StringVar(&pending.Name, "name", "", "display name")
	flags.StringVar(&pending.Phone, "phone", "", "phone number")
	flags.StringVar(&pending.BirthDate, "birth-date", "", "birth date as "+domain.DateLayout)
	flags.StringVar(&kind, "kind", string(domain.AccountKindClient), "account kind: cliente or organizador")
	flags.IntVar(&cityID, "city", 0, "IBGE municipality code")

	for _, name := range []string{"email", "password", "confirm-password", "name"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newResendCommand(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "resend",
		Short: "Send the confirmation email again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := a.client(ctx).Resend(ctx, email); err != nil {
				return err
			}

			a.printf("confirmation email sent to %s", email)

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newConfirmCommand(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "confirm <link|token>",
		Short: "Open a confirmation link and create the pending profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := confirmationToken(args[0])
			if err != nil {
				return err
			}

			return a.runTab(cmd.Context(), wait, func(ctx context.Context) error {
				session, err := a.client(ctx).Verify(ctx, token)
				if err != nil {
					return err
				}

				a.printf("signed in as %s", session.User.Email)

				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long the tab stays open after signing in")

	return cmd
}

func newTabCommand(a *app) *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "tab",
		Short: "Keep a tab open until it is closed or interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTab(cmd.Context(), 0, nil)
		},
	}
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			session, err := a.client(ctx).SignIn(ctx, email, password)
			if err != nil {
				return err
			}

			a.printf("signed in as %s until %s",
				session.User.Email, time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := a.client(ctx).SignOut(ctx); err != nil {
				return err
			}

			a.printf("signed out")

			return nil
		},
	}
}

func newWhoAmICommand(a *app) *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "whoami",
		Short: "Show the signed-in user and profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client := a.client(ctx)

			user, err := client.User(ctx)
			if err != nil {
				return err
			}

			a.printf("user %s <%s>", user.ID, user.Email)

			profile, err := client.Profile(ctx)
			if err != nil {
				return err
			}

			a.printf("profile %s (%s)", profile.Name, profile.Kind)

			return nil
		},
	}
}

func newCitiesCommand(a *app) *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "cities <name>",
		Short: "Search municipalities by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			for _, city := range a.client(ctx).SearchCities(ctx, args[0]) {
				a.printf("%d\t%s - %s", city.Code, city.Name, city.UF)
			}

			return nil
		},
	}
}

func newFeedCommand(a *app) *cobra.Command {
	var (
		query  domain.FeedQuery
		cityID int
	)

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "feed",
		Short: "List approved upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if cityID > 0 {
				query.CityID = &cityID
			}

			page, err := a.client(ctx).Feed(ctx, query)
			if err != nil {
				return err
			}

			for _, event := range page.Events {
				city := "-"
				if event.City != nil {
					city = event.City.Name + " - " + event.City.UF
				}

				a.printf("%s\t%s\t%s\t%s", event.ID, event.StartsAt.Format(time.DateTime), event.Name, city)
			}

			a.printf("page %d of %d (%d events)", page.Page, page.TotalPages, page.Total)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&query.Name, "name", "", "event name contains")
	flags.IntVar(&cityID, "city", 0, "IBGE municipality code")
	flags.IntVar(&query.Page, "page", 1, "page number")
	flags.IntVar(&query.PageSize, "page-size", domain.DefaultPageSize, "events per page")

	return cmd
}

func newUploadCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "upload",
		Short: "Upload images",
	}

	cmd.AddCommand(newUploadAvatarCommand(a), newUploadGalleryCommand(a))

	return cmd
}

func newUploadAvatarCommand(a *app) *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:   "avatar <file>",
		Short: "Set the profile image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files, err := readFiles(args)
			if err != nil {
				return err
			}

			profile, err := a.client(ctx).SetProfileImage(ctx, files[0].Name, files[0].Data)
			if err != nil {
				return err
			}

			if profile.ImageURL != nil {
				a.printf("profile image %s", *profile.ImageURL)
			}

			return nil
		},
	}
}

func newUploadGalleryCommand(a *app) *cobra.Command {
	var bucket, prefix, eventID string

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "gallery <file>...",
		Short: "Upload up to " + strconv.Itoa(domain.MaxEventImages) + " images, optionally adding them to an event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := a.client(ctx)

			files, err := readFiles(args)
			if err != nil {
				return err
			}

			uploads, err := client.UploadGallery(ctx, bucket, prefix, files)
			if err != nil {
				return err
			}

			urls := make([]string, 0, len(uploads))

			for _, upload := range uploads {
				a.printf("%s\t%s", upload.Path, upload.PublicURL)
				urls = append(urls, upload.PublicURL)
			}

			if eventID == "" || len(urls) == 0 {
				return nil
			}

			event, err := client.AddEventImages(ctx, eventID, urls)
			if err != nil {
				return err
			}

			a.printf("event %s has %d images", event.ID, len(event.ImageURLs))

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&bucket, "bucket", domain.BucketEventImages, "bucket: "+strings.Join(domain.Buckets, ", "))
	flags.StringVar(&prefix, "prefix", "", "object path prefix")
	flags.StringVar(&eventID, "event", "", "event to add the images to")

	return cmd
}

func readFiles(paths []string) ([]backend.File, error) {
	files := make([]backend.File, 0, len(paths))

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}

		files = append(files, backend.File{Name: filepath.Base(p), Data: data})
	}

	return files, nil
}
