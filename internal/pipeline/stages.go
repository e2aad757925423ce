package pipeline

// CleanStage runs gtfsclean with the full normalization pass: service
// and stop-time minimization, redundant route/service/trip removal with
// fuzzy trip matching, non-overlapping explicit calendars, id
// minimization and orphan deletion. Station ids are kept stable so
// downstream consumers can match stops across feed versions.
func CleanStage(input, output string) Stage {
	return Stage{
		Name:    "gtfsclean",
		Command: "gtfsclean",
		Args: []string{
			"--minimize-services",
			"--minimize-stoptimes",
			"--remove-red-routes",
			"--remove-red-services",
			"--remove-red-trips",
			"--red-trips-fuzzy",
			"--non-overlapping-services",
			"--explicit-calendar",
			"--minimize-ids-char",
			"--keep-station-ids",
			"--delete-orphans",
			input,
			"--output", output,
		},
	}
}

// CleanDefaultStage runs gtfsclean's default pass, used to tidy up after
// shape matching.
func CleanDefaultStage(input, output string) Stage {
	return Stage{
		Name:    "gtfsclean-final",
		Command: "gtfsclean",
		Args:    []string{input, "-o", output},
	}
}

// ShapeStage runs pfaedle against an OSM extract, adding shapes to the
// feed in place.
func ShapeStage(feedZip, osmExtract string) Stage {
	return Stage{
		Name:    "pfaedle",
		Command: "pfaedle",
		Args:    []string{"--inplace", "-x", osmExtract, feedZip},
	}
}
