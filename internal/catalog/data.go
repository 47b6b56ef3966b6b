package catalog

// Rubric definitions. Catalogs are static data: editing a weight here is a
// version bump, not a runtime concern.

var salesCatalog = Catalog{
	Name:    "sales",
	Version: "2024.2",
	Layout:  LayoutHorizontal,
	Blocks: []Block{
		{
			Name: "Opening",
			Topics: []Topic{
				{Label: "Institutional greeting", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Agent identifies themselves and the company within the first exchange."},
				{Label: "Customer identity verification", Critical: true, MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Full verification before discussing account details."},
			},
		},
		{
			Name: "Needs Discovery",
			Topics: []Topic{
				{Label: "Open questions to surface needs", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "At least two open questions before pitching."},
				{Label: "Active listening signals", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Paraphrases or confirms what the customer said."},
			},
		},
		{
			Name: "Offer",
			Topics: []Topic{
				{Label: "Benefit-led presentation", MaxPoints: 15, HasPoints: true, Applies: true, Guidance: "Leads with benefits tied to stated needs, not feature lists."},
				{Label: "Price and conditions disclosed", Critical: true, MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Total price, term, and cancellation conditions stated."},
				{Label: "Objection handling", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Acknowledges, probes, and answers the objection."},
			},
		},
		{
			Name: "System Handling",
			Topics: []Topic{
				{Label: "Order captured in CRM", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Order record visible with product, quantity, and customer data."},
				{Label: "Mandatory fields completed", Critical: true, MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "No mandatory field left blank in the captured screens."},
			},
		},
		{
			Name: "Closure",
			Topics: []Topic{
				{Label: "Recap and next steps", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Summarizes the agreement and states what happens next."},
				{Label: "Farewell protocol", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Thanks the customer and offers further help."},
			},
		},
	},
}

var supportCatalog = Catalog{
	Name:    "support",
	Version: "2024.3",
	Layout:  LayoutVertical,
	Blocks: []Block{
		{
			Name: "Opening",
			Topics: []Topic{
				{Label: "Institutional greeting", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Agent identifies themselves and the company."},
				{Label: "Customer identity verification", Critical: true, MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Verification completed before account changes."},
			},
		},
		{
			Name: "Diagnosis",
			Topics: []Topic{
				{Label: "Problem restated correctly", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Agent restates the issue in their own words."},
				{Label: "Relevant probing questions", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Questions narrow the cause rather than follow a script blindly."},
				{Label: "Ticket history reviewed", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Prior tickets for the same issue are checked in the tool."},
			},
		},
		{
			Name: "Resolution",
			Topics: []Topic{
				{Label: "Correct procedure applied", Critical: true, MaxPoints: 15, HasPoints: true, Applies: true, Guidance: "The documented procedure for the diagnosed issue is followed."},
				{Label: "Workaround offered when blocked", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "A temporary measure is offered if no immediate fix exists."},
				{Label: "Upsell attempted", HasPoints: false, Applies: false, Guidance: "Not expected on support interactions."},
			},
		},
		{
			Name: "System Handling",
			Topics: []Topic{
				{Label: "Case documented in ticketing tool", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Ticket notes reflect the diagnosis and actions taken."},
				{Label: "Correct case categorization", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Category and severity match the reported issue."},
			},
		},
		{
			Name: "Closure",
			Topics: []Topic{
				{Label: "Correct case closure", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Confirms resolution with the customer and states next steps."},
				{Label: "Farewell protocol", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Thanks the customer and offers further help."},
			},
		},
	},
}

var collectionsCatalog = Catalog{
	Name:    "collections",
	Version: "2024.1",
	Layout:  LayoutVertical,
	Blocks: []Block{
		{
			Name: "Opening",
			Topics: []Topic{
				{Label: "Institutional greeting", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Agent identifies themselves and the company."},
				{Label: "Right-party contact confirmed", Critical: true, MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Debt details only after confirming the debtor's identity."},
			},
		},
		{
			Name: "Negotiation",
			Topics: []Topic{
				{Label: "Debt stated accurately", Critical: true, MaxPoints: 15, HasPoints: true, Applies: true, Guidance: "Amount, age, and origin of the debt match the system."},
				{Label: "Payment options offered", MaxPoints: 15, HasPoints: true, Applies: true, Guidance: "At least two payment alternatives are presented."},
				{Label: "Commitment date agreed", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "A concrete payment date is agreed and repeated back."},
			},
		},
		{
			Name: "System Handling",
			Topics: []Topic{
				{Label: "Agreement recorded in collections tool", MaxPoints: 15, HasPoints: true, Applies: true, Guidance: "The promise-to-pay is visible in the captured screens."},
			},
		},
		{
			Name: "Closure",
			Topics: []Topic{
				{Label: "Recap and next steps", MaxPoints: 10, HasPoints: true, Applies: true, Guidance: "Summarizes the agreement and consequences of missing it."},
				{Label: "Farewell protocol", MaxPoints: 5, HasPoints: true, Applies: true, Guidance: "Respectful close regardless of outcome."},
			},
		},
	},
}
