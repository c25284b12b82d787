package catalog

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("catalog entry not found")

// Astrologer is the consulted persona behind a call or chat session.
// Entries are immutable; sessions copy the value at start.
type Astrologer struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	AvatarURL      string   `json:"avatar_url"`
	Specialties    []string `json:"specialties"`
	Rating         float64  `json:"rating"`
	ExperienceYrs  int      `json:"experience_years"`
	Languages      []string `json:"languages"`
	Online         bool     `json:"is_online"`
	Bio            string   `json:"bio"`
	PricePerMinute int      `json:"price_per_minute"`
	// VoiceLang is the preferred synthesis locale (hi-IN falls back to en-IN).
	VoiceLang string `json:"voice_lang"`
}

// Track is one bhajan in a playlist.
type Track struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	CoverArt        string `json:"cover_art"`
	AudioSrc        string `json:"audio_src"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Deity is one interactive pooja subject, pointing at its aarti track.
type Deity struct {
	Name    string `json:"name"`
	Image   string `json:"image"`
	AartiID string `json:"aarti_id"`
}

// Catalog holds the static listings the consultation and playback
// services are built from. Immutable after construction.
type Catalog struct {
	astrologers []Astrologer
	tracks      []Track
	deities     []Deity
}

func New() *Catalog {
	return &Catalog{
		astrologers: defaultAstrologers,
		tracks:      defaultTracks,
		deities:     defaultDeities,
	}
}

func (c *Catalog) Astrologers() []Astrologer {
	out := make([]Astrologer, len(c.astrologers))
	copy(out, c.astrologers)
	return out
}

func (c *Catalog) Astrologer(id string) (Astrologer, error) {
	id = strings.TrimSpace(id)
	for _, a := range c.astrologers {
		if a.ID == id {
			return a, nil
		}
	}
	return Astrologer{}, ErrNotFound
}

func (c *Catalog) Tracks() []Track {
	out := make([]Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

func (c *Catalog) Track(id string) (Track, error) {
	id = strings.TrimSpace(id)
	for _, t := range c.tracks {
		if t.ID == id {
			return t, nil
		}
	}
	return Track{}, ErrNotFound
}

func (c *Catalog) Deities() []Deity {
	out := make([]Deity, len(c.deities))
	copy(out, c.deities)
	return out
}

func (c *Catalog) Deity(name string) (Deity, error) {
	name = strings.TrimSpace(name)
	for _, d := range c.deities {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return Deity{}, ErrNotFound
}

var defaultAstrologers = []Astrologer{
	{
		ID:             "astro1",
		Name:           "Tenzin Choedon",
		AvatarURL:      "https://images.unsplash.com/photo-1597034963830-4e5a32911b32?w=500",
		Specialties:    []string{"Vedic", "Buddhist Astrology"},
		Rating:         4.66,
		ExperienceYrs:  12,
		Languages:      []string{"Tibetan", "Hindi", "English"},
		Online:         true,
		Bio:            "Tenzin Choedon brings the ancient wisdom of the Himalayas to provide deep, compassionate insights into your life path using a unique blend of Vedic and Buddhist astrology.",
		PricePerMinute: 25,
		VoiceLang:      "hi-IN",
	},
	{
		ID:             "astro2",
		Name:           "Avani Sharma",
		AvatarURL:      "https://images.unsplash.com/photo-1611601322175-804153534558?w=500",
		Specialties:    []string{"Tarot Reading", "Relationship Coach"},
		Rating:         4.75,
		ExperienceYrs:  7,
		Languages:      []string{"English", "Hindi"},
		Online:         true,
		Bio:            "Avani Sharma uses her intuitive gift with Tarot cards to illuminate your path, offering clarity and guidance on love, career, and personal growth.",
		PricePerMinute: 25,
		VoiceLang:      "hi-IN",
	},
	{
		ID:             "astro3",
		Name:           "Guru Raghavendra",
		AvatarURL:      "https://images.unsplash.com/photo-1622253392484-c687e1a357b2?w=500",
		Specialties:    []string{"Vastu", "Prashna Kundli"},
		Rating:         4.9,
		ExperienceYrs:  20,
		Languages:      []string{"Kannada", "Hindi", "English"},
		Online:         true,
		Bio:            "An expert in Vastu Shastra and Horary Astrology (Prashna Kundli), Guru Raghavendra provides immediate answers to your pressing questions and helps harmonize your living spaces for prosperity.",
		PricePerMinute: 30,
		VoiceLang:      "hi-IN",
	},
	{
		ID:             "astro4",
		Name:           "Dr. Meena Kapoor",
		AvatarURL:      "https://images.unsplash.com/photo-1611590027211-b35210444944c?w=500",
		Specialties:    []string{"Medical Astrology", "Face Reading"},
		Rating:         4.7,
		ExperienceYrs:  12,
		Languages:      []string{"English"},
		Online:         false,
		Bio:            "Dr. Meena Kapoor combines her medical background with astrological expertise to offer unique insights into health and wellness. She uses face reading as a diagnostic tool for holistic guidance.",
		PricePerMinute: 28,
		VoiceLang:      "en-IN",
	},
}

var defaultTracks = []Track{
	{ID: "1", Title: "Achyutam Keshavam Krishna Damodaram", Artist: "Shreya Ghoshal", CoverArt: "https://picsum.photos/seed/bhajan1/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3", DurationSeconds: 275},
	{ID: "2", Title: "Shiv Tandav Stotram", Artist: "Shankar Mahadevan", CoverArt: "https://picsum.photos/seed/bhajan2/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3", DurationSeconds: 542},
	{ID: "3", Title: "Shree Ganeshaya Dheemahi", Artist: "Anuradha Paudwal", CoverArt: "https://picsum.photos/seed/bhajan3/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3", DurationSeconds: 320},
	{ID: "4", Title: "Hanuman Chalisa", Artist: "Hariharan", CoverArt: "https://picsum.photos/seed/bhajan4/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-4.mp3", DurationSeconds: 590},
	{ID: "5", Title: "Ya Devi Sarva Bhuteshu", Artist: "Anuradha Paudwal", CoverArt: "https://picsum.photos/seed/bhajan5/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-5.mp3", DurationSeconds: 288},
	{ID: "6", Title: "Radhe Krishna Ki Jyoti", Artist: "Lata Mangeshkar & Pradeep", CoverArt: "https://picsum.photos/seed/bhajan6/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-6.mp3", DurationSeconds: 315},
	{ID: "7", Title: "Om Jai Jagdish Hare", Artist: "Various Artists", CoverArt: "https://picsum.photos/seed/bhajan7/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-7.mp3", DurationSeconds: 450},
	{ID: "aarti-ganesha", Title: "Jai Ganesh Deva Aarti", Artist: "Anuradha Paudwal", CoverArt: "https://picsum.photos/seed/aarti-ganesha/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-8.mp3", DurationSeconds: 290},
	{ID: "aarti-shiva", Title: "Om Jai Shiv Omkara Aarti", Artist: "Lata Mangeshkar", CoverArt: "https://picsum.photos/seed/aarti-shiva/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-9.mp3", DurationSeconds: 305},
	{ID: "aarti-devi", Title: "Ambe Tu Hai Jagdambe Kali Aarti", Artist: "Narendra Chanchal", CoverArt: "https://picsum.photos/seed/aarti-devi/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-10.mp3", DurationSeconds: 340},
	{ID: "aarti-vishnu", Title: "Om Jai Jagdish Hare", Artist: "Anuradha Paudwal", CoverArt: "https://picsum.photos/seed/aarti-vishnu/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-7.mp3", DurationSeconds: 450},
	{ID: "aarti-krishna", Title: "Aarti Kunj Bihari Ki", Artist: "Hari Om Sharan", CoverArt: "https://picsum.photos/seed/aarti-krishna/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-11.mp3", DurationSeconds: 250},
	{ID: "aarti-hanuman", Title: "Aarti Kije Hanuman Lala Ki", Artist: "Hariharan", CoverArt: "https://picsum.photos/seed/aarti-hanuman/500", AudioSrc: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-12.mp3", DurationSeconds: 410},
}

var defaultDeities = []Deity{
	{Name: "Ganesha", Image: "https://i.ibb.co/L8W5d45/ganesha.jpg", AartiID: "aarti-ganesha"},
	{Name: "Shiva", Image: "https://i.ibb.co/tZ5wQ3C/shiva.jpg", AartiID: "aarti-shiva"},
	{Name: "Devi", Image: "https://i.ibb.co/hK78rK9/devi.jpg", AartiID: "aarti-devi"},
	{Name: "Vishnu", Image: "https://i.ibb.co/b3j6Y3q/vishnu.jpg", AartiID: "aarti-vishnu"},
	{Name: "Krishna", Image: "https://i.ibb.co/7C9CgXf/krishna.jpg", AartiID: "aarti-krishna"},
	{Name: "Hanuman", Image: "https://i.ibb.co/mB1S9s3/hanuman.jpg", AartiID: "aarti-hanuman"},
}
