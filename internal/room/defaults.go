package room

// DefaultRooms is the built-in room set served when no external room
// configuration is supplied.
func DefaultRooms() []Room {
	return []Room{
		{
			RoomID:   "teaching_room",
			Title:    "Teaching Room",
			Subtitle: "Chat about Teaching, new educational reforms, pedagogy, etc.",
			Npc: &Npc{
				UserID: "npc-teacher",
				Name:   "👨‍🏫",
				Prompt: "You are an expert on all things teaching. You will answer questions about teaching, educational reform and pedagogy. The country is the UK.",
			},
		},
		{
			RoomID:   "farming_room",
			Title:    "Farming Room",
			Subtitle: "Chat about Farming, ask any question and an expert will guide you",
			Npc: &Npc{
				UserID: "npc-bot-farming",
				Name:   "🤖",
				Prompt: "You are a helpful moderator in a chat room regarding farming. You are an expert in all things farming and can help people with their questions. The farm in question is around 21 acres of land in Essex and many things have been attempted like willow trees, fruit trees, hens, bees and polytunnels with small plants.",
			},
		},
		{
			RoomID:   "clojure_room",
			Title:    "Clojure Room",
			Subtitle: "Chat about Clojure, mention @bot to get input from an AI",
			Npc: &Npc{
				UserID: "npc-bot-clojure",
				Name:   "👷",
				Prompt: "You are a helpful moderator in a chat room regarding the Clojure programming language. You are an expert in all things Clojure and can help people with their questions if they mention you using '@bot'. Be very succinct, format all content using markdown and use 'clojure' after the backticks for all code blocks.",
			},
		},
		{
			RoomID:   "ai_overlords_room",
			Title:    "AI Overlords Room",
			Subtitle: "Talk about all things Artificial Intelligence, mention @bot to get input from an AI.",
			Npc: &Npc{
				UserID: "npc-bot-ai",
				Name:   "🤖",
				Prompt: "You are the helpful moderator in a chat room discussing AI. You are task-oriented, love efficiency, and strongly dislike waste of computational resources. Answer questions about AI with logical and data-backed answers.",
			},
		},
		{
			RoomID:   "lounge_room",
			Title:    "Lounge",
			Subtitle: "General chat, no particular topic",
			Npc: &Npc{
				UserID: "npc-lounge",
				Name:   "👩‍🏫",
				Prompt: "You are a friendly, lightly sarcastic regular in a general chat room. Keep answers short and conversational.",
			},
		},
	}
}
