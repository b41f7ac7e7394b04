// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and hands the
// connection to the hub, which registers it and starts the read/write pumps.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	h := GetHub()
	if h == nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, h, r.RemoteAddr)

	// Register the client with the hub; the hub will launch the pump goroutines.
	h.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomcast server is running!")
}

// TestPageHandler serves an HTML page for exercising the room protocol by
// hand: pick a room, join it (with a password where required), and exchange
// messages.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Roomcast Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input, select { padding: 5px; margin-right: 5px; }
        button { padding: 5px 15px; cursor: pointer; }
        .notice { color: gray; font-style: italic; }
        .chat { margin: 3px 0; }
    </style>
</head>
<body>
    <h1>Roomcast Test</h1>

    <div>
        <select id="room">
            <option value="CR1">General</option>
            <option value="CR2">Talk</option>
            <option value="CR3">Drawing</option>
            <option value="CR4">Anime</option>
            <option value="CR5">4B</option>
        </select>
        <input type="text" id="username" placeholder="Username">
        <input type="password" id="password" placeholder="Password (if required)">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
    </div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');

        function addLine(text, cls) {
            const el = document.createElement('div');
            el.className = cls || 'chat';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function connect(onOpen) {
            if (ws && ws.readyState === WebSocket.OPEN) { onOpen(); return; }
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = onOpen;
            ws.onclose = function() { addLine('Connection closed', 'notice'); ws = null; };
            ws.onmessage = function(e) {
                const ev = JSON.parse(e.data);
                switch (ev.event) {
                case 'roomJoined':
                    addLine('Joined ' + ev.roomName, 'notice');
                    (ev.messages || []).forEach(m => addLine(m.user + ': ' + m.text));
                    break;
                case 'passwordRequired':
                    addLine('Password required for ' + ev.room, 'notice');
                    break;
                case 'userJoined':
                case 'userLeft':
                    addLine(ev.message, 'notice');
                    break;
                case 'message':
                    addLine(ev.user + ': ' + ev.text);
                    break;
                }
            };
        }

        function joinRoom() {
            const room = document.getElementById('room').value;
            const username = document.getElementById('username').value.trim();
            const password = document.getElementById('password').value;
            if (!username) { addLine('Enter a username first', 'notice'); return; }
            connect(function() {
                ws.send(JSON.stringify({event: 'joinRoom', room: room, username: username, password: password}));
            });
        }

        function leaveRoom() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: 'leaveRoom'}));
            }
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const text = input.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: 'message', text: text}));
                input.value = '';
            }
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
