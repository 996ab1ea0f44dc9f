package achievement

func messages(n int) []Criterion { return []Criterion{{Type: CriteriaMessages, Value: n}} }
func checkIns(n int) []Criterion { return []Criterion{{Type: CriteriaCheckIns, Value: n}} }
func fuelUsed(n int) []Criterion { return []Criterion{{Type: CriteriaFuelUsed, Value: n}} }
func daysIn(n int) []Criterion   { return []Criterion{{Type: CriteriaAccountAgeDays, Value: n}} }

func both(a, b []Criterion) []Criterion {
	return append(append([]Criterion{}, a...), b...)
}

// catalog is ordered by ascending numeric id. Evaluation walks it in this order.
var catalog = []Achievement{
	{ID: "1", Title: "First Chat", Description: "You started talking to Nyra", Icon: "💬", Criteria: messages(1)},
	{ID: "2", Title: "10 Messages", Description: "You've sent 10 messages", Icon: "✨", Criteria: messages(10)},
	{ID: "3", Title: "Chatterbox", Description: "You've sent 25 messages", Icon: "🗨️", Criteria: messages(25)},
	{ID: "4", Title: "Conversationalist", Description: "You've sent 50 messages", Icon: "🎙️", Criteria: messages(50)},
	{ID: "5", Title: "Century", Description: "You've sent 100 messages", Icon: "💯", Criteria: messages(100)},
	{ID: "6", Title: "Storyteller", Description: "You've sent 200 messages", Icon: "📖", Criteria: messages(200)},
	{ID: "7", Title: "Deep Talker", Description: "You've sent 500 messages", Icon: "🌊", Criteria: messages(500)},
	{ID: "8", Title: "Thousand Words", Description: "You've sent 1000 messages", Icon: "🏆", Criteria: messages(1000)},
	{ID: "9", Title: "Daily Check-In", Description: "You checked in today", Icon: "✅",
		Criteria: []Criterion{{Type: CriteriaCheckedInToday, Value: 1}}},
	{ID: "10", Title: "Showing Up", Description: "You've checked in on 5 days", Icon: "📅", Criteria: checkIns(5)},
	{ID: "11", Title: "Habit Forming", Description: "You've checked in on 10 days", Icon: "🌱", Criteria: checkIns(10)},
	{ID: "12", Title: "Regular", Description: "You've checked in on 20 days", Icon: "🌿", Criteria: checkIns(20)},
	{ID: "13", Title: "Month of Moments", Description: "You've checked in on 30 days", Icon: "🌳", Criteria: checkIns(30)},
	{ID: "14", Title: "Fueled Up", Description: "You've used 10 fuel", Icon: "⛽", Criteria: fuelUsed(10)},
	{ID: "15", Title: "High Octane", Description: "You've used 50 fuel", Icon: "🔥", Criteria: fuelUsed(50)},
	{ID: "16", Title: "Full Tank", Description: "You've used 100 fuel", Icon: "🚀", Criteria: fuelUsed(100)},
	{ID: "17", Title: "One Week Together", Description: "7 days since you met Nyra", Icon: "🗓️", Criteria: daysIn(7)},
	{ID: "18", Title: "One Month Together", Description: "30 days since you met Nyra", Icon: "🌙", Criteria: daysIn(30)},
	{ID: "19", Title: "Two Months Together", Description: "60 days since you met Nyra", Icon: "🌗", Criteria: daysIn(60)},
	{ID: "20", Title: "A Season Together", Description: "90 days since you met Nyra", Icon: "🍂", Criteria: daysIn(90)},
	{ID: "21", Title: "Half a Year", Description: "180 days since you met Nyra", Icon: "🌓", Criteria: daysIn(180)},
	{ID: "22", Title: "One Year Together", Description: "365 days since you met Nyra", Icon: "🎂", Criteria: daysIn(365)},
	{ID: "23", Title: "Committed", Description: "150 messages and 10 check-ins", Icon: "🤝", Criteria: both(messages(150), checkIns(10))},
	{ID: "24", Title: "Devoted", Description: "300 messages and 20 check-ins", Icon: "💞", Criteria: both(messages(300), checkIns(20))},
	{ID: "25", Title: "Inseparable", Description: "600 messages and 30 check-ins", Icon: "💖", Criteria: both(messages(600), checkIns(30))},
	{ID: "26", Title: "Powerhouse", Description: "1000 messages and 100 fuel used", Icon: "⚡", Criteria: both(messages(1000), fuelUsed(100))},
	{ID: "27", Title: "Warming Up", Description: "50 messages and 5 check-ins", Icon: "☀️", Criteria: both(messages(50), checkIns(5))},
	{ID: "28", Title: "Steady Burn", Description: "25 fuel used and 10 check-ins", Icon: "🕯️", Criteria: both(fuelUsed(25), checkIns(10))},
	{ID: "29", Title: "Month of Chats", Description: "200 messages and 30 days with Nyra", Icon: "📆", Criteria: both(messages(200), daysIn(30))},
	{ID: "30", Title: "Big Spender", Description: "500 messages and 50 fuel used", Icon: "💎", Criteria: both(messages(500), fuelUsed(50))},
	{ID: "31", Title: "Settling In", Description: "3 days with Nyra", Icon: "🏡", Criteria: daysIn(3)},
	{ID: "32", Title: "First Week", Description: "7 days with Nyra", Icon: "7️⃣", Criteria: daysIn(7)},
	{ID: "33", Title: "Two Weeks In", Description: "14 days with Nyra", Icon: "🔁", Criteria: daysIn(14)},
	{ID: "34", Title: "Thirty Days", Description: "30 days with Nyra", Icon: "🗓️", Criteria: daysIn(30)},
	{ID: "35", Title: "Sixty Days", Description: "60 days with Nyra", Icon: "⏳", Criteria: daysIn(60)},
	{ID: "36", Title: "Ninety Days", Description: "90 days with Nyra", Icon: "🧭", Criteria: daysIn(90)},
	{ID: "37", Title: "Half-Year Streak", Description: "180 days with Nyra", Icon: "🏅", Criteria: daysIn(180)},
	{ID: "38", Title: "Full Orbit", Description: "365 days with Nyra", Icon: "🌍", Criteria: daysIn(365)},
	{ID: "39", Title: "Wordsmith", Description: "You've sent 750 messages", Icon: "✍️", Criteria: messages(750)},
	{ID: "40", Title: "Chronicler", Description: "You've sent 1250 messages", Icon: "📜", Criteria: messages(1250)},
	{ID: "41", Title: "Novelist", Description: "You've sent 1750 messages", Icon: "📚", Criteria: messages(1750)},
	{ID: "42", Title: "Epic", Description: "You've sent 2250 messages", Icon: "🗺️", Criteria: messages(2250)},
	{ID: "43", Title: "Saga", Description: "You've sent 2750 messages", Icon: "🐉", Criteria: messages(2750)},
	{ID: "44", Title: "Legend", Description: "You've sent 3250 messages", Icon: "👑", Criteria: messages(3250)},
	{ID: "45", Title: "Mythic", Description: "You've sent 3750 messages", Icon: "🌌", Criteria: messages(3750)},
	{ID: "46", Title: "Old Friends", Description: "400 days with Nyra", Icon: "🫶", Criteria: daysIn(400)},
	{ID: "47", Title: "Kindred Spirits", Description: "450 days with Nyra", Icon: "🔮", Criteria: daysIn(450)},
	{ID: "48", Title: "Five Hundred Days", Description: "500 days with Nyra", Icon: "🎉", Criteria: daysIn(500)},
	{ID: "49", Title: "Timeless", Description: "550 days with Nyra", Icon: "♾️", Criteria: daysIn(550)},
	{ID: "50", Title: "Forever Friends", Description: "600 days with Nyra", Icon: "💫", Criteria: daysIn(600)},
}

var byID = func() map[string]Achievement {
	m := make(map[string]Achievement, len(catalog))
	for _, a := range catalog {
		m[a.ID] = a
	}
	return m
}()

// Catalog returns a copy of the ordered catalog.
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id string) (Achievement, bool) {
	a, ok := byID[id]
	return a, ok
}
