package campus

// DefaultDefinitions is the campus table shipped with the map.
// Routing is enabled only where walking paths have been surveyed.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:      "SJ",
			Name:    "San Joaquín",
			Aliases: []string{"SanJoaquin"},
			Core:    Bounds{MinLng: -70.6171, MinLat: -33.5021, MaxLng: -70.6043, MaxLat: -33.4952},
			Max:     Bounds{MinLng: -70.6205028, MinLat: -33.5078278, MaxLng: -70.5913170, MaxLat: -33.4879484},
			Routing: true,
			Entry:   []float64{-70.61564953541995, -33.498485323162896},
		},
		{
			ID:      "LC",
			Name:    "Lo Contador",
			Aliases: []string{"LoContador"},
			Core:    Bounds{MinLng: -70.6198, MinLat: -33.4207, MaxLng: -70.6154, MaxLat: -33.4178},
			Max:     Bounds{MinLng: -70.6223158, MinLat: -33.4286518, MaxLng: -70.6096562, MaxLat: -33.4065652},
			Routing: true,
			Entry:   []float64{-70.61785030163261, -33.41986777583937},
		},
		{
			ID:   "VR",
			Name: "Villarrica",
			Core: Bounds{MinLng: -72.2264, MinLat: -39.2787, MaxLng: -72.2244, MaxLat: -39.2771},
			Max:  Bounds{MinLng: -72.22701952051408, MinLat: -39.278605924710156, MaxLng: -72.2242192943034, MaxLat: -39.276849411532424},
		},
		{
			ID:      "CC",
			Name:    "Casa Central",
			Aliases: []string{"CasaCentral"},
			Core:    Bounds{MinLng: -70.6424, MinLat: -33.4427, MaxLng: -70.6386, MaxLat: -33.4403},
			Max:     Bounds{MinLng: -70.6470478, MinLat: -33.4500328, MaxLng: -70.6323672, MaxLat: -33.4311542},
		},
		{
			ID:   "OR",
			Name: "Oriente",
			Core: Bounds{MinLng: -70.597, MinLat: -33.4477, MaxLng: -70.5902, MaxLat: -33.4435},
			Max:  Bounds{MinLng: -70.60228168760007, MinLat: -33.45132213922094, MaxLng: -70.58052647213087, MaxLat: -33.44061912671008},
		},
	}
}

// DefaultCatalog builds the catalog from DefaultDefinitions.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic(err)
	}
	return catalog
}
