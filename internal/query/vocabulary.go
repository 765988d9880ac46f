package query

// builtinVocabulary maps lowercase trigger phrases found in a query to
// MeSH-style expansion terms. It backs the deterministic part of query
// enhancement: the same query always gains the same vocabulary terms,
// independent of the NLU provider's output.
//
// Triggers are matched as substrings of the lowercased query. Longer,
// more specific triggers should carry the more specific terms.
var builtinVocabulary = map[string][]string{
	"diabetes": {
		"diabetes mellitus",
		"glycemic control",
		"hba1c",
	},
	"type 2 diabetes": {
		"type 2 diabetes mellitus",
		"t2dm",
		"metformin",
	},
	"type 1 diabetes": {
		"type 1 diabetes mellitus",
		"t1dm",
		"insulin therapy",
	},
	"hypertension": {
		"blood pressure",
		"antihypertensive agents",
		"cardiovascular risk",
	},
	"blood pressure": {
		"hypertension",
		"antihypertensive agents",
	},
	"heart failure": {
		"cardiac failure",
		"ejection fraction",
		"hfref",
	},
	"myocardial infarction": {
		"heart attack",
		"acute coronary syndrome",
	},
	"heart attack": {
		"myocardial infarction",
		"acute coronary syndrome",
	},
	"stroke": {
		"cerebrovascular accident",
		"ischemic stroke",
		"thrombolysis",
	},
	"cancer": {
		"neoplasms",
		"oncology",
		"tumor",
	},
	"breast cancer": {
		"breast neoplasms",
		"mammography",
	},
	"lung cancer": {
		"lung neoplasms",
		"non-small cell lung cancer",
	},
	"asthma": {
		"bronchial asthma",
		"inhaled corticosteroids",
		"bronchodilator",
	},
	"copd": {
		"chronic obstructive pulmonary disease",
		"pulmonary disease",
	},
	"obesity": {
		"body mass index",
		"weight loss",
		"bariatric",
	},
	"depression": {
		"depressive disorder",
		"antidepressive agents",
		"ssri",
	},
	"anxiety": {
		"anxiety disorders",
		"generalized anxiety disorder",
	},
	"alzheimer": {
		"alzheimer disease",
		"dementia",
		"cognitive decline",
	},
	"dementia": {
		"cognitive decline",
		"alzheimer disease",
	},
	"covid": {
		"covid-19",
		"sars-cov-2",
		"coronavirus",
	},
	"influenza": {
		"flu",
		"influenza vaccines",
	},
	"vaccine": {
		"vaccination",
		"immunization",
	},
	"antibiotic": {
		"anti-bacterial agents",
		"antimicrobial resistance",
	},
	"pregnancy": {
		"prenatal care",
		"maternal health",
	},
	"arthritis": {
		"osteoarthritis",
		"rheumatoid arthritis",
		"joint pain",
	},
	"osteoporosis": {
		"bone density",
		"fracture risk",
		"bisphosphonates",
	},
	"kidney": {
		"renal",
		"chronic kidney disease",
	},
	"migraine": {
		"migraine disorders",
		"headache",
	},
	"insomnia": {
		"sleep initiation and maintenance disorders",
		"sleep quality",
	},
	"cholesterol": {
		"hypercholesterolemia",
		"statins",
		"ldl",
	},
	"statin": {
		"hydroxymethylglutaryl-coa reductase inhibitors",
		"cholesterol",
	},
}

// vocabularyTerms returns the expansion terms for every trigger phrase
// present in the lowercased query.
func vocabularyTerms(loweredQuery string, vocabulary map[string][]string) []string {
	var terms []string
	for trigger, expansions := range vocabulary {
		if containsPhrase(loweredQuery, trigger) {
			terms = append(terms, expansions...)
		}
	}
	return terms
}
