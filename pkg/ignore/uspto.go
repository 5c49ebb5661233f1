package ignore

// USPTO returns the records the USPTO confirmed as duplicated across weekly
// grant files of 1987.
func USPTO() *Set {
	s := New()
	// Overlap with the October 27th file.
	s.Add("pftaps19871103_wk44.txt",
		"047029323",
		"047029382",
	)
	s.Add("pftaps19871110_wk45.txt",
		// Overlap with the November 3rd file.
		"H00003670",
		"H00003689",
		"H00003743",
		"047035218",
		"047035404",
		"047035781",
		// Overlap with the October 27th file.
		"047031492",
		"047031883",
		"047032049",
		"047032634",
		"047032952",
		"047033185",
		"047033908",
		"047033894",
		"047034327",
		"047034335",
		"047034491",
		"047034653",
		"047035170",
	)
	return s
}
