package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/creativeprojects/go-selfupdate"
)

// updateRepo is the GitHub repository releases are published from.
const updateRepo = "harmonyvt/sheetscribe"

// runUpdate replaces the running binary with the latest release.
func runUpdate() {
	if version == "dev" {
		fmt.Println(infoStyle.Render("Development build; skipping self-update."))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println(infoStyle.Render("Checking for updates..."))

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(updateRepo))
	if err != nil {
		fmt.Println(errorStyle.Render("Error checking for updates: " + err.Error()))
		os.Exit(1)
	}
	if !found {
		fmt.Println(infoStyle.Render("No release found for this platform."))
		return
	}

	if latest.LessOrEqual(version) {
		fmt.Println(successStyle.Render(fmt.Sprintf("Already up to date (v%s)", version)))
		return
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Println(errorStyle.Render("Error locating executable: " + err.Error()))
		os.Exit(1)
	}

	fmt.Println(infoStyle.Render(fmt.Sprintf("Updating %s -> %s...", version, latest.Version())))
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		fmt.Println(errorStyle.Render("Update failed: " + err.Error()))
		os.Exit(1)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✅ Updated to %s", latest.Version())))
}
